package contacts

import (
	"context"
	"testing"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	store *store.Store
	reg   *registry.Registry
	bus   *eventbus.Bus
	graph *Graph
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

	return &harness{store: s, reg: r, bus: bus, graph: New(s, bus)}
}

func (h *harness) agent(t *testing.T, name string) *model.Agent {
	t.Helper()
	a, err := h.reg.RegisterAgent(context.Background(), registry.RegisterAgentInput{
		ProjectKey: "/tmp/p", Program: "x", Name: name,
	})
	require.NoError(t, err)
	return a
}

func TestRequestContactPendingThenApprove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	edge, err := h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "let's talk")
	require.NoError(t, err)
	require.Equal(t, model.ContactPending, edge.State)

	edge, err = h.graph.RespondContact(ctx, 1, "agentBobby", "agentAlice", true)
	require.NoError(t, err)
	require.Equal(t, model.ContactApproved, edge.State)

	edges, err := h.graph.ListContacts(ctx, 1, "agentBobby")
	require.NoError(t, err)
	require.Len(t, edges, 2) // original + auto-created reverse
}

func TestRequestContactBothOpenAutoApproves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	require.NoError(t, h.graph.SetContactPolicy(ctx, 1, "agentAlice", model.PolicyOpen))
	require.NoError(t, h.graph.SetContactPolicy(ctx, 1, "agentBobby", model.PolicyOpen))

	edge, err := h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "")
	require.NoError(t, err)
	require.Equal(t, model.ContactApproved, edge.State)
}

func TestRequestContactIdempotentAndReDeclinedResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "first")
	require.NoError(t, err)
	_, err = h.graph.RespondContact(ctx, 1, "agentBobby", "agentAlice", false)
	require.NoError(t, err)

	edge, err := h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "again")
	require.NoError(t, err)
	require.Equal(t, model.ContactPending, edge.State)
}

func TestRespondContactWrongOrderFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.graph.RespondContact(ctx, 1, "agentAlice", "agentBobby", true)
	require.Error(t, err)
}

func TestCheckSendGateRequiresApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.agent(t, "agentAlice")
	bobby := h.agent(t, "agentBobby")

	err := h.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return CheckSendGate(tx, 1, alice.ID, bobby.ID)
	})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.ContactApprovalRequired, e.Code)

	_, err = h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "")
	require.NoError(t, err)
	_, err = h.graph.RespondContact(ctx, 1, "agentBobby", "agentAlice", true)
	require.NoError(t, err)

	err = h.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return CheckSendGate(tx, 1, alice.ID, bobby.ID)
	})
	require.NoError(t, err)
}

func TestRequestAndRespondContactPublishEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	ch, unsub := h.bus.Subscribe()
	defer unsub()

	_, err := h.graph.RequestContact(ctx, 1, "agentAlice", "agentBobby", "")
	require.NoError(t, err)
	select {
	case ev := <-ch:
		require.Equal(t, eventbus.TopicContactRequested, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for contact.requested event")
	}

	_, err = h.graph.RespondContact(ctx, 1, "agentBobby", "agentAlice", true)
	require.NoError(t, err)
	select {
	case ev := <-ch:
		require.Equal(t, eventbus.TopicContactResponded, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for contact.responded event")
	}
}
