package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind_JSONRPCCode(t *testing.T) {
	require.Equal(t, -32004, Timeout.JSONRPCCode())
	require.Equal(t, -32602, InvalidArgument.JSONRPCCode())
	require.Equal(t, -32000, ProjectNotFound.JSONRPCCode())
	require.Equal(t, -32000, InternalError.JSONRPCCode())
}

func TestNew_HasNoDetails(t *testing.T) {
	e := New(AgentNotFound, "no such agent")
	require.Equal(t, AgentNotFound, e.Code)
	require.Equal(t, "no such agent", e.Message)
	require.Nil(t, e.Details)
}

func TestNewf_FormatsMessage(t *testing.T) {
	e := Newf(ProjectNotFound, "project %q not found", "/tmp/p")
	require.Equal(t, `project "/tmp/p" not found`, e.Message)
}

func TestError_StringFormatsCodeAndMessage(t *testing.T) {
	e := New(Forbidden, "nope")
	require.Equal(t, "Forbidden: nope", e.Error())
}

func TestWithDetails_ChainsAndMutatesReceiver(t *testing.T) {
	e := New(FileReservationConflict, "path held").WithDetails(map[string]any{"path": "a.go"})
	require.Equal(t, "a.go", e.Details["path"])
}

func TestAs_FindsDirectError(t *testing.T) {
	e := New(RateLimited, "slow down")
	found, ok := As(e)
	require.True(t, ok)
	require.Same(t, e, found)
}

func TestAs_FindsWrappedError(t *testing.T) {
	e := New(Unauthenticated, "no token")
	wrapped := fmt.Errorf("request failed: %w", e)
	found, ok := As(wrapped)
	require.True(t, ok)
	require.Same(t, e, found)
}

func TestAs_FalseForPlainError(t *testing.T) {
	_, ok := As(fmt.Errorf("plain error"))
	require.False(t, ok)
}
