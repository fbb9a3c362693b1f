package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/gateway"
	gwmem "github.com/denar-dev/denar/internal/gateway/memory"
	"github.com/denar-dev/denar/internal/store"
)

type fakeApplier struct {
	applied [][]store.Statement
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, stmts ...store.Statement) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, stmts)
	return nil
}

func stageOne(t *testing.T, q *Queue) string {
	t.Helper()
	token, err := q.Stage(context.Background(), StageRequest{
		Statements:  []store.Statement{store.AdjustBalance{Name: "alice", Delta: decimal.NewFromInt(600)}},
		Requester:   "user-1",
		Origin:      gateway.Handle("origin-1"),
		PromptText:  "user-1 would like to deposit 600 denars.",
		SuccessText: "Deposit completed.",
		DenyText:    "Deposit denied.",
	})
	require.NoError(t, err)
	return token
}

func TestStagePostsPrompt(t *testing.T) {
	gw := gwmem.New()
	applier := &fakeApplier{}
	q := New(applier, gw, "moderation", zaptest.NewLogger(t))

	token := stageOne(t, q)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, q.Len())

	prompt, ok := gw.LastApproval()
	require.True(t, ok)
	assert.Equal(t, "moderation", prompt.Channel)
	assert.Contains(t, prompt.Text, "deposit 600")

	// Nothing applies until a moderator approves.
	assert.Empty(t, applier.applied)
}

func TestStageRejectsEmptyBatch(t *testing.T) {
	q := New(&fakeApplier{}, gwmem.New(), "moderation", zaptest.NewLogger(t))
	_, err := q.Stage(context.Background(), StageRequest{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApproveAppliesOnce(t *testing.T) {
	gw := gwmem.New()
	applier := &fakeApplier{}
	q := New(applier, gw, "moderation", zaptest.NewLogger(t))

	token := stageOne(t, q)
	require.NoError(t, q.Resolve(context.Background(), token, gateway.OutcomeApprove))

	require.Len(t, applier.applied, 1)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"Deposit completed."}, gw.Replies(gateway.Handle("origin-1")))

	// Second resolution of the same token is a silent no-op.
	require.NoError(t, q.Resolve(context.Background(), token, gateway.OutcomeApprove))
	assert.Len(t, applier.applied, 1)
	assert.Len(t, gw.Replies(gateway.Handle("origin-1")), 1)
}

func TestDenyDiscardsBatch(t *testing.T) {
	gw := gwmem.New()
	applier := &fakeApplier{}
	q := New(applier, gw, "moderation", zaptest.NewLogger(t))

	token := stageOne(t, q)
	require.NoError(t, q.Resolve(context.Background(), token, gateway.OutcomeDeny))

	assert.Empty(t, applier.applied)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"Deposit denied."}, gw.Replies(gateway.Handle("origin-1")))

	// A later approve of the consumed token must not resurrect it.
	require.NoError(t, q.Resolve(context.Background(), token, gateway.OutcomeApprove))
	assert.Empty(t, applier.applied)
}

func TestUnknownTokenIsNoOp(t *testing.T) {
	gw := gwmem.New()
	q := New(&fakeApplier{}, gw, "moderation", zaptest.NewLogger(t))
	require.NoError(t, q.Resolve(context.Background(), "no-such-token", gateway.OutcomeApprove))
	assert.Empty(t, gw.Messages())
}

func TestApplyFailureNotifiesAndConsumes(t *testing.T) {
	gw := gwmem.New()
	applier := &fakeApplier{err: errors.New("balance guard failed")}
	q := New(applier, gw, "moderation", zaptest.NewLogger(t))

	token := stageOne(t, q)
	err := q.Resolve(context.Background(), token, gateway.OutcomeApprove)
	require.ErrorIs(t, err, apperrors.ErrBatchFailed)

	// Token is consumed even on failure; retrying is a no-op.
	assert.Equal(t, 0, q.Len())
	require.NoError(t, q.Resolve(context.Background(), token, gateway.OutcomeApprove))

	// Staff channel got the failure report, requester got the apology.
	channel := gw.ChannelMessages("moderation")
	require.NotEmpty(t, channel)
	assert.Contains(t, channel[len(channel)-1].Text, "could not be applied")
	replies := gw.Replies(gateway.Handle("origin-1"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "could not be applied")
}

func TestResolveSignal(t *testing.T) {
	gw := gwmem.New()
	applier := &fakeApplier{}
	q := New(applier, gw, "moderation", zaptest.NewLogger(t))

	stageOne(t, q)
	prompt, ok := gw.LastApproval()
	require.True(t, ok)

	require.NoError(t, q.ResolveSignal(context.Background(), prompt.Handle, "mod-1", gateway.OutcomeApprove))
	assert.Len(t, applier.applied, 1)
	assert.Equal(t, 0, q.Len())

	// Signals on unknown prompts are ignored.
	require.NoError(t, q.ResolveSignal(context.Background(), gateway.Handle("bogus"), "mod-1", gateway.OutcomeApprove))
	assert.Len(t, applier.applied, 1)
}

func TestLookup(t *testing.T) {
	q := New(&fakeApplier{}, gwmem.New(), "moderation", zaptest.NewLogger(t))
	token := stageOne(t, q)

	p, ok := q.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "user-1", p.Requester)

	_, ok = q.Lookup("missing")
	assert.False(t, ok)
}
