// Package approval stages ledger batches that require moderation and
// guarantees each confirmation token resolves at most once.
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/gateway"
	"github.com/denar-dev/denar/internal/store"
)

// Applier commits a staged batch atomically.
type Applier interface {
	Apply(ctx context.Context, stmts ...store.Statement) error
}

// Pending is one staged batch awaiting a resolution signal.
type Pending struct {
	Token       string
	Statements  []store.Statement
	Requester   string
	Origin      gateway.Handle
	SuccessText string
	DenyText    string
	Prompt      gateway.Handle
}

// StageRequest describes a batch to stage.
type StageRequest struct {
	Statements  []store.Statement
	Requester   string
	Origin      gateway.Handle
	PromptText  string
	SuccessText string
	DenyText    string
}

// Queue owns the pending-approval map. Staging is append-only; a token is
// consumed by exactly one resolution. Entries never expire.
type Queue struct {
	applier Applier
	gw      gateway.Gateway
	channel string
	log     *zap.Logger

	mu       sync.Mutex
	pending  map[string]Pending
	byPrompt map[gateway.Handle]string
}

// New creates a Queue posting prompts to the given moderation channel.
func New(applier Applier, gw gateway.Gateway, channel string, log *zap.Logger) *Queue {
	return &Queue{
		applier:  applier,
		gw:       gw,
		channel:  channel,
		log:      log,
		pending:  make(map[string]Pending),
		byPrompt: make(map[gateway.Handle]string),
	}
}

// Stage posts a moderation prompt and records the batch under a fresh
// confirmation token.
func (q *Queue) Stage(ctx context.Context, req StageRequest) (string, error) {
	if len(req.Statements) == 0 {
		return "", fmt.Errorf("%w: empty batch", apperrors.ErrValidation)
	}
	prompt, err := q.gw.RequestApproval(ctx, q.channel, req.PromptText)
	if err != nil {
		return "", fmt.Errorf("posting approval prompt: %w", err)
	}

	token := uuid.NewString()
	q.mu.Lock()
	q.pending[token] = Pending{
		Token:       token,
		Statements:  req.Statements,
		Requester:   req.Requester,
		Origin:      req.Origin,
		SuccessText: req.SuccessText,
		DenyText:    req.DenyText,
		Prompt:      prompt,
	}
	q.byPrompt[prompt] = token
	q.mu.Unlock()

	q.log.Info("staged batch for approval",
		zap.String("token", token),
		zap.String("requester", req.Requester),
		zap.Int("statements", len(req.Statements)))
	return token, nil
}

// Resolve consumes the token. Approve applies the batch as one atomic
// commit and notifies the requester with its success text; deny notifies
// with the deny text and discards the batch. An unknown or already
// consumed token is a silent no-op.
func (q *Queue) Resolve(ctx context.Context, token string, outcome gateway.Outcome) error {
	q.mu.Lock()
	p, ok := q.pending[token]
	if ok {
		delete(q.pending, token)
		delete(q.byPrompt, p.Prompt)
	}
	q.mu.Unlock()
	if !ok {
		return nil
	}

	if outcome != gateway.OutcomeApprove {
		q.log.Info("batch denied", zap.String("token", token))
		if err := q.gw.Reply(ctx, p.Origin, p.DenyText); err != nil {
			q.log.Warn("deny notification failed", zap.String("token", token), zap.Error(err))
		}
		return nil
	}

	if err := q.applier.Apply(ctx, p.Statements...); err != nil {
		q.log.Error("approved batch failed", zap.String("token", token), zap.Error(err))
		if _, serr := q.gw.Send(ctx, q.channel,
			fmt.Sprintf("Approved request from %s could not be applied: %v", p.Requester, err)); serr != nil {
			q.log.Warn("audit notification failed", zap.Error(serr))
		}
		if rerr := q.gw.Reply(ctx, p.Origin,
			"The approved request could not be applied. Contact bank staff."); rerr != nil {
			q.log.Warn("failure notification failed", zap.Error(rerr))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
	}

	q.log.Info("batch applied", zap.String("token", token))
	if err := q.gw.Reply(ctx, p.Origin, p.SuccessText); err != nil {
		q.log.Warn("success notification failed", zap.String("token", token), zap.Error(err))
	}
	return nil
}

// ResolveSignal translates a moderator's reaction on a prompt handle into
// a token resolution. Signals for unknown prompts are ignored.
func (q *Queue) ResolveSignal(ctx context.Context, prompt gateway.Handle, actor string, outcome gateway.Outcome) error {
	q.mu.Lock()
	token, ok := q.byPrompt[prompt]
	q.mu.Unlock()
	if !ok {
		return nil
	}
	q.log.Info("resolution signal",
		zap.String("token", token),
		zap.String("actor", actor),
		zap.String("outcome", string(outcome)))
	return q.Resolve(ctx, token, outcome)
}

// Lookup returns the pending entry for a token, if still staged.
func (q *Queue) Lookup(token string) (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[token]
	return p, ok
}

// Len returns the number of staged batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
