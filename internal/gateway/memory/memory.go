// Package memory provides an in-process Gateway used by tests and local
// runs. It records every delivery and hands out sequential handles.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/denar-dev/denar/internal/gateway"
)

// Message is one recorded delivery.
type Message struct {
	Channel  string // empty for replies and direct messages
	Text     string
	Handle   gateway.Handle
	ReplyTo  gateway.Handle // set for replies
	OwnerID  string         // set for direct messages
	Approval bool           // true for approval prompts
}

// Gateway is an in-memory gateway.Gateway.
type Gateway struct {
	mu       sync.Mutex
	seq      int
	messages []Message
}

// New creates an empty in-memory gateway.
func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) record(m Message) gateway.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	m.Handle = gateway.Handle(fmt.Sprintf("msg-%d", g.seq))
	g.messages = append(g.messages, m)
	return m.Handle
}

// Send posts a notification to a channel.
func (g *Gateway) Send(_ context.Context, channel, text string) (gateway.Handle, error) {
	return g.record(Message{Channel: channel, Text: text}), nil
}

// RequestApproval posts a moderation prompt.
func (g *Gateway) RequestApproval(_ context.Context, channel, text string) (gateway.Handle, error) {
	return g.record(Message{Channel: channel, Text: text, Approval: true}), nil
}

// Reply responds to an earlier message.
func (g *Gateway) Reply(_ context.Context, origin gateway.Handle, text string) error {
	g.record(Message{ReplyTo: origin, Text: text})
	return nil
}

// DirectMessage notifies an external identity.
func (g *Gateway) DirectMessage(_ context.Context, ownerID, text string) error {
	g.record(Message{OwnerID: ownerID, Text: text})
	return nil
}

// Messages returns a copy of every recorded delivery in order.
func (g *Gateway) Messages() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Message, len(g.messages))
	copy(out, g.messages)
	return out
}

// ChannelMessages returns the deliveries posted to one channel.
func (g *Gateway) ChannelMessages(channel string) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Message
	for _, m := range g.messages {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

// LastApproval returns the most recent approval prompt, if any.
func (g *Gateway) LastApproval() (Message, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.messages) - 1; i >= 0; i-- {
		if g.messages[i].Approval {
			return g.messages[i], true
		}
	}
	return Message{}, false
}

// Replies returns the replies sent to one origin handle.
func (g *Gateway) Replies(origin gateway.Handle) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.messages {
		if m.ReplyTo == origin {
			out = append(out, m.Text)
		}
	}
	return out
}

// DirectMessages returns the direct messages sent to one identity.
func (g *Gateway) DirectMessages(ownerID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.messages {
		if m.OwnerID == ownerID {
			out = append(out, m.Text)
		}
	}
	return out
}
