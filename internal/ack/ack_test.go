package ack

import (
	"context"
	"testing"
	"time"

	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/mail"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store *store.Store
	reg   *registry.Registry
	bus   *eventbus.Bus
	mailE *mail.Engine
	ackE  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.Open(store.DefaultConfig("sqlite://file::memory:?cache=shared"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	r, err := registry.New(s, nil)
	require.NoError(t, err)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	return &harness{store: s, reg: r, bus: bus, mailE: mail.New(s, bus), ackE: New(s, bus)}
}

func (h *harness) sendAckRequired(t *testing.T, deadlineMs int64) (int64, string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.reg.RegisterAgent(ctx, registry.RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "agentAlice"})
	require.NoError(t, err)
	_, err = h.reg.RegisterAgent(ctx, registry.RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "agentBobby"})
	require.NoError(t, err)

	graph := contacts.New(h.store, h.bus)
	require.NoError(t, graph.SetContactPolicy(ctx, 1, "agentAlice", model.PolicyOpen))
	require.NoError(t, graph.SetContactPolicy(ctx, 1, "agentBobby", model.PolicyOpen))

	env, err := h.mailE.Send(ctx, mail.SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "deadline", BodyMD: "please ack", AckRequired: true, AckDeadlineMs: deadlineMs,
	})
	require.NoError(t, err)
	return env.MessageID, "agentBobby"
}

func TestAcksPending(t *testing.T) {
	h := newHarness(t)
	far := h.store.Clock().NowMillis() + 1_000_000
	h.sendAckRequired(t, far)

	entries, err := h.ackE.AcksPending(context.Background(), "/tmp/p", "agentBobby")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.AckPending, entries[0].State)
}

func TestAcksOverdueFlipsState(t *testing.T) {
	h := newHarness(t)
	past := h.store.Clock().NowMillis() + 1 // will be "past" relative to a later NowMillis call
	h.sendAckRequired(t, past)

	// advance the clock well beyond the deadline
	for i := 0; i < 5; i++ {
		h.store.Clock().NowMillis()
	}

	entries, err := h.ackE.AcksOverdue(context.Background(), "/tmp/p", "agentBobby")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.AckOverdue, entries[0].State)

	pending, err := h.ackE.AcksPending(context.Background(), "/tmp/p", "agentBobby")
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSweepEmitsOverdueEvent(t *testing.T) {
	h := newHarness(t)
	past := h.store.Clock().NowMillis() + 1
	h.sendAckRequired(t, past)
	for i := 0; i < 5; i++ {
		h.store.Clock().NowMillis()
	}

	sub, unsub := h.bus.Subscribe()
	defer unsub()

	n, err := h.ackE.sweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case ev := <-sub:
		require.Equal(t, eventbus.TopicAckOverdue, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected ack.overdue event")
	}

	// idempotent: a second sweep finds nothing new
	n, err = h.ackE.sweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
