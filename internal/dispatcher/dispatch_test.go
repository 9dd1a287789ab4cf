package dispatcher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentmaild/agentmail/internal/ack"
	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/mail"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/reservation"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store *store.Store
	d     *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.Open(store.DefaultConfig("sqlite://file::memory:?cache=shared"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	reg, err := registry.New(s, nil)
	require.NoError(t, err)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	deps := Deps{
		Registry:    reg,
		Contacts:    contacts.New(s, bus),
		Mail:        mail.New(s, bus),
		Ack:         ack.New(s, bus),
		Reservation: reservation.New(s, bus, 10*time.Second),
	}
	return &harness{store: s, d: Build(deps)}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestListToolsIsStableAndComplete(t *testing.T) {
	h := newHarness(t)
	first := h.d.ListTools()
	second := h.d.ListTools()
	require.Equal(t, first, second)
	require.Greater(t, len(first), 15)
}

func TestCallUnknownToolIsInvalidArgument(t *testing.T) {
	h := newHarness(t)
	env := h.d.Call(context.Background(), "no_such_tool", nil)
	require.True(t, env.IsError)
	require.Equal(t, errs.InvalidArgument, env.Error.Code)
}

func TestCallRejectsUnknownFields(t *testing.T) {
	h := newHarness(t)
	env := h.d.Call(context.Background(), "ensure_project", mustJSON(t, map[string]any{
		"human_key": "/tmp/p", "bogus_field": 1,
	}))
	require.True(t, env.IsError)
	require.Equal(t, errs.InvalidArgument, env.Error.Code)
}

func TestEnsureProjectThenRegisterAgentRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	env := h.d.Call(ctx, "ensure_project", mustJSON(t, map[string]any{"human_key": "/tmp/p"}))
	require.False(t, env.IsError)

	env = h.d.Call(ctx, "register_agent", mustJSON(t, map[string]any{
		"project_key": "/tmp/p", "program": "x", "model": "m", "name": "agentAlice",
	}))
	require.False(t, env.IsError)
	var agent agentView
	require.NoError(t, json.Unmarshal([]byte(env.Content[0].Text), &agent))
	require.Equal(t, "agentAlice", agent.Name)

	env = h.d.Call(ctx, "whois", mustJSON(t, map[string]any{"project_key": "/tmp/p", "agent_name": "agentAlice"}))
	require.False(t, env.IsError)
}

func TestSendMessageRequiresContactApprovalThroughDispatcher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.Call(ctx, "ensure_project", mustJSON(t, map[string]any{"human_key": "/tmp/p"}))
	h.d.Call(ctx, "register_agent", mustJSON(t, map[string]any{"project_key": "/tmp/p", "program": "x", "model": "m", "name": "agentAlice"}))
	h.d.Call(ctx, "register_agent", mustJSON(t, map[string]any{"project_key": "/tmp/p", "program": "x", "model": "m", "name": "agentBobby"}))

	env := h.d.Call(ctx, "send_message", mustJSON(t, map[string]any{
		"project_key": "/tmp/p", "sender_name": "agentAlice", "to": []string{"agentBobby"},
		"subject": "hi", "body_md": "hello",
	}))
	require.True(t, env.IsError)
	require.Equal(t, errs.ContactApprovalRequired, env.Error.Code)
}

func TestRateLimitExceededReturnsRateLimited(t *testing.T) {
	h := newHarness(t)
	h.d.limiters = newLimiterSet(1, 1)
	ctx := context.Background()

	args := mustJSON(t, map[string]any{"human_key": "/tmp/p"})
	first := h.d.Call(ctx, "ensure_project", args)
	require.False(t, first.IsError)
	second := h.d.Call(ctx, "ensure_project", args)
	require.True(t, second.IsError)
	require.Equal(t, errs.RateLimited, second.Error.Code)
}

func TestCallRecoversPanicWithCorrelationID(t *testing.T) {
	h := newHarness(t)
	h.d.Register(ToolSpec{
		Name:    "panics",
		Handler: func(ctx context.Context, call Call) (any, error) { panic("boom") },
	})
	env := h.d.Call(context.Background(), "panics", nil)
	require.True(t, env.IsError)
	require.Equal(t, errs.InternalError, env.Error.Code)
	require.Contains(t, env.Error.Message, "correlation_id=")
}

type recordedCall struct {
	tool    string
	isError bool
}

type fakeMetricsRecorder struct {
	calls []recordedCall
}

func (f *fakeMetricsRecorder) RecordToolCall(tool string, isError bool, duration time.Duration) {
	f.calls = append(f.calls, recordedCall{tool: tool, isError: isError})
}

func TestWithMetricsRecordsOnlyInvokedCalls(t *testing.T) {
	h := newHarness(t)
	rec := &fakeMetricsRecorder{}
	WithMetrics(rec)(h.d)

	env := h.d.Call(context.Background(), "ensure_project", mustJSON(t, map[string]any{"human_key": "/tmp/metrics"}))
	require.False(t, env.IsError)

	errEnv := h.d.Call(context.Background(), "no_such_tool", nil)
	require.True(t, errEnv.IsError)

	require.Len(t, rec.calls, 1, "unknown-tool calls never reach invoke, so only the successful call is recorded")
	require.Equal(t, "ensure_project", rec.calls[0].tool)
	require.False(t, rec.calls[0].isError)
}
