package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	s, err := store.Open(store.DefaultConfig("sqlite://file::memory:?cache=shared"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	r, err := New(s, nil)
	require.NoError(t, err)
	return r
}

func TestEnsureProjectIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	p1, err := r.EnsureProject(ctx, "/tmp/p1")
	require.NoError(t, err)

	p2, err := r.EnsureProject(ctx, "/tmp/p1")
	require.NoError(t, err)

	require.Equal(t, p1.ID, p2.ID)
}

func TestRegisterAgentAllocatesName(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "claude-code", Model: "sonnet"})
	require.NoError(t, err)
	require.NotEmpty(t, a.Name)
	require.Len(t, a.NameLower, len(a.Name))
}

func TestRegisterAgentExplicitNameCollision(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "quietFalcon"})
	require.NoError(t, err)

	_, err = r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "quietFalcon"})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.AgentNameTaken, e.Code)
}

func TestRegisterAgentInvalidName(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "ab"})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidAgentName, e.Code)
}

func TestRegisterAgentAcceptsPascalCaseName(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "RedFox"})
	require.NoError(t, err)

	_, err = r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: "BluePeak"})
	require.NoError(t, err)
}

func TestWhoisNotFound(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Whois(ctx, "/tmp/p", "nobody")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.AgentNotFound, e.Code)
}

func TestListAgentsOrderedByCreation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/p", Program: "x", Name: fmt.Sprintf("agentName%c", 'A'+i)})
		require.NoError(t, err)
	}

	agents, err := r.ListAgents(ctx, "/tmp/p", 0, 0)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	for i := 1; i < len(agents); i++ {
		require.LessOrEqual(t, agents[i-1].CreatedAtMs, agents[i].CreatedAtMs)
	}
}

func TestMarkIdentityIsExclusive(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.EnsureProject(ctx, "/tmp/p1")
	require.NoError(t, err)
	p2, err := r.EnsureProject(ctx, "/tmp/p2")
	require.NoError(t, err)

	_, err = r.MarkIdentity(ctx, "/tmp/p1")
	require.NoError(t, err)

	_, err = r.MarkIdentity(ctx, "/tmp/p2")
	require.NoError(t, err)

	var reread struct{ IsIdentity bool }
	require.NoError(t, r.store.DB().Raw("SELECT is_identity FROM projects WHERE id = ?", p2.ID).Scan(&reread).Error)
	require.True(t, reread.IsIdentity)

	var p1Flag struct{ IsIdentity bool }
	require.NoError(t, r.store.DB().Raw("SELECT is_identity FROM projects WHERE human_key = ?", "/tmp/p1").Scan(&p1Flag).Error)
	require.False(t, p1Flag.IsIdentity)
}

func TestAllocateAgentConcurrentUnique(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	names := make([]string, n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.RegisterAgent(ctx, RegisterAgentInput{ProjectKey: "/tmp/concurrent", Program: "x"})
			errsOut[i] = err
			if err == nil {
				names[i] = a.Name
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, err := range errsOut {
		require.NoError(t, err)
		require.False(t, seen[names[i]], "duplicate name allocated: %s", names[i])
		seen[names[i]] = true
	}
}
