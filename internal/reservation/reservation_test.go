package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store *store.Store
	reg   *registry.Registry
	bus   *eventbus.Bus
	eng   *Engine
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithGrace(t, 10*time.Second)
}

func newHarnessWithGrace(t *testing.T, grace time.Duration) *harness {
	t.Helper()
	s, err := store.Open(store.DefaultConfig("sqlite://file::memory:?cache=shared"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	r, err := registry.New(s, nil)
	require.NoError(t, err)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	return &harness{store: s, reg: r, bus: bus, eng: New(s, bus, grace)}
}

func (h *harness) agent(t *testing.T, name string) {
	t.Helper()
	_, err := h.reg.RegisterAgent(context.Background(), registry.RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: name})
	require.NoError(t, err)
}

func TestCanonicalizePaths(t *testing.T) {
	got := canonicalizePaths([]string{"./a/b/", "a/../c", "a/b", "a/b"})
	require.Equal(t, []string{"a/b", "c"}, got)
}

func TestGrantAndConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	granted, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"src/main.go"}, 60, true, "editing")
	require.NoError(t, err)
	require.NotZero(t, granted.ReservationID)

	_, err = h.eng.FileReservationPaths(ctx, "/tmp/p", "agentBobby", []string{"src/main.go"}, 60, false, "reading")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.FileReservationConflict, e.Code)
}

func TestSharedReservationsCoexist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"docs/readme.md"}, 60, false, "")
	require.NoError(t, err)
	_, err = h.eng.FileReservationPaths(ctx, "/tmp/p", "agentBobby", []string{"docs/readme.md"}, 60, false, "")
	require.NoError(t, err)
}

func TestRenewExtendsExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")

	granted, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 10, true, "")
	require.NoError(t, err)

	renewed, err := h.eng.Renew(ctx, "/tmp/p", "agentAlice", 120)
	require.NoError(t, err)
	require.Len(t, renewed, 1)
	require.Greater(t, renewed[0].ExpiresAtMs, granted.ExpiresAtMs)
}

func TestReleaseFreesPathForOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)
	require.NoError(t, h.eng.Release(ctx, "/tmp/p", "agentAlice", nil))

	_, err = h.eng.FileReservationPaths(ctx, "/tmp/p", "agentBobby", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)
}

func TestForceReleaseRefusedWithinGrace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")

	granted, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)

	err = h.eng.ForceRelease(ctx, "/tmp/p", "agentAlice", granted.ReservationID)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.ForcedReleaseRefused, e.Code)
}

// The grace window must be anchored to the holder's last write (granting
// the reservation), not to its registration time: an agent that registered
// long before the grace window, then grants a reservation just now, must
// still be refused a force-release (spec P7, §3 "last-seen updated
// implicitly by send/read activity").
func TestForceReleaseRefusedAfterStaleRegistrationButRecentGrant(t *testing.T) {
	h := newHarnessWithGrace(t, 30*time.Millisecond)
	ctx := context.Background()
	h.agent(t, "agentAlice")

	time.Sleep(50 * time.Millisecond) // registration is now outside the grace window

	granted, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)

	err = h.eng.ForceRelease(ctx, "/tmp/p", "agentAlice", granted.ReservationID)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.ForcedReleaseRefused, e.Code)
}

func TestPassiveExpiryReleasesConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")
	h.agent(t, "agentBobby")

	_, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 1, true, "")
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		h.store.Clock().NowMillis()
	}

	_, err = h.eng.FileReservationPaths(ctx, "/tmp/p", "agentBobby", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)
}

func TestGrantAndReleasePublishEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agent(t, "agentAlice")

	ch, unsub := h.bus.Subscribe()
	defer unsub()

	granted, err := h.eng.FileReservationPaths(ctx, "/tmp/p", "agentAlice", []string{"a.go"}, 60, true, "")
	require.NoError(t, err)
	select {
	case ev := <-ch:
		require.Equal(t, eventbus.TopicReservationGranted, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reservation.granted event")
	}

	require.NoError(t, h.eng.Release(ctx, "/tmp/p", "agentAlice", &granted.ReservationID))
	select {
	case ev := <-ch:
		require.Equal(t, eventbus.TopicReservationReleased, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reservation.released event")
	}
}
