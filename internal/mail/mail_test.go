package mail

import (
	"context"
	"testing"
	"time"

	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store  *store.Store
	reg    *registry.Registry
	bus    *eventbus.Bus
	engine *Engine
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

	return &harness{store: s, reg: r, bus: bus, engine: New(s, bus)}
}

func (h *harness) agent(t *testing.T, name string) *model.Agent {
	t.Helper()
	a, err := h.reg.RegisterAgent(context.Background(), registry.RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: name})
	require.NoError(t, err)
	return a
}

func (h *harness) openContacts(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	graph := contacts.New(h.store, h.bus)
	require.NoError(t, graph.SetContactPolicy(ctx, 1, a, model.PolicyOpen))
	require.NoError(t, graph.SetContactPolicy(ctx, 1, b, model.PolicyOpen))
}

func TestSendMessageRequiresContactApproval(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.engine.Send(context.Background(), SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "hi", BodyMD: "hello",
	})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.ContactApprovalRequired, e.Code)
}

func TestSendMessageDeliversAndPublishesEvent(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")

	sub, unsub := h.bus.Subscribe()
	defer unsub()

	env, err := h.engine.Send(context.Background(), SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "hi", BodyMD: "hello world", AckRequired: true,
	})
	require.NoError(t, err)
	require.Len(t, env.Deliveries, 1)
	require.True(t, env.Deliveries[0].AckRequired)

	select {
	case ev := <-sub:
		require.Equal(t, eventbus.TopicDeliveryCreated, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected delivery.created event")
	}
}

func TestSendMessageDeduplicatesRecipients(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")

	env, err := h.engine.Send(context.Background(), SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice",
		To:      []string{"agentBobby", "agentBobby"},
		Subject: "hi", BodyMD: "hello",
	})
	require.NoError(t, err)
	require.Len(t, env.Deliveries, 1)
}

func TestSendMessagePreservesThreadSubject(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")
	ctx := context.Background()

	_, err := h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		ThreadID: "thread-1", Subject: "original subject", BodyMD: "hello",
	})
	require.NoError(t, err)

	_, err = h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		ThreadID: "thread-1", Subject: "different subject", BodyMD: "second",
	})
	require.NoError(t, err)

	var subject string
	require.NoError(t, h.store.DB().Raw("SELECT subject FROM threads WHERE external_id = ?", "thread-1").Scan(&subject).Error)
	require.Equal(t, "original subject", subject)
}

func TestFetchInboxAndAcknowledge(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")
	ctx := context.Background()

	env, err := h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "hi", BodyMD: "hello", AckRequired: true,
	})
	require.NoError(t, err)

	entries, err := h.engine.FetchInbox(ctx, "/tmp/p", "agentBobby", 10, 0, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].BodyMD)

	require.NoError(t, h.engine.AcknowledgeMessage(ctx, "/tmp/p", "agentBobby", env.MessageID, "got it"))
	require.NoError(t, h.engine.AcknowledgeMessage(ctx, "/tmp/p", "agentBobby", env.MessageID, "got it again"))

	var state string
	require.NoError(t, h.store.DB().Raw("SELECT state FROM deliveries WHERE message_id = ?", env.MessageID).Scan(&state).Error)
	require.Equal(t, "acknowledged", state)
}

func TestSearchMessagesFindsIndexedContent(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")
	ctx := context.Background()

	_, err := h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "deployment plan", BodyMD: "rolling out the new release tonight",
	})
	require.NoError(t, err)

	results, err := h.engine.SearchMessages(ctx, "/tmp/p", "release", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestMarkReadDoesNotTouchAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")
	ctx := context.Background()

	env, err := h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "hi", BodyMD: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.AcknowledgeMessage(ctx, "/tmp/p", "agentBobby", env.MessageID, ""))
	require.NoError(t, h.engine.MarkRead(ctx, "/tmp/p", "agentBobby", []int64{env.MessageID}))

	var state string
	require.NoError(t, h.store.DB().Raw("SELECT state FROM deliveries WHERE message_id = ?", env.MessageID).Scan(&state).Error)
	require.Equal(t, "acknowledged", state)
}

func TestAcknowledgeAndMarkReadPublishEvents(t *testing.T) {
	h := newHarness(t)
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")
	h.openContacts(t, "agentAlice", "agentBobby")
	ctx := context.Background()

	ch, unsub := h.bus.Subscribe()
	defer unsub()

	env, err := h.engine.Send(ctx, SendInput{
		ProjectKey: "/tmp/p", SenderName: "agentAlice", To: []string{"agentBobby"},
		Subject: "hi", BodyMD: "hello",
	})
	require.NoError(t, err)
	requireEventTopic(t, ch, eventbus.TopicDeliveryCreated)

	require.NoError(t, h.engine.MarkRead(ctx, "/tmp/p", "agentBobby", []int64{env.MessageID}))
	requireEventTopic(t, ch, eventbus.TopicDeliveryRead)

	require.NoError(t, h.engine.AcknowledgeMessage(ctx, "/tmp/p", "agentBobby", env.MessageID, "done"))
	requireEventTopic(t, ch, eventbus.TopicAckAcknowledged)
}

func requireEventTopic(t *testing.T, ch <-chan eventbus.Event, topic string) {
	t.Helper()
	select {
	case ev := <-ch:
		require.Equal(t, topic, ev.Topic)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s event", topic)
	}
}
