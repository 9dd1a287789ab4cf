package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckLiveness_DecodesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health/liveness", r.URL.Path)
		json.NewEncoder(w).Encode(LivenessStatus{Status: "alive", Fingerprint: "abc123"})
	}))
	defer srv.Close()

	status, err := CheckLiveness(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	require.NoError(t, err)
	require.Equal(t, "alive", status.Status)
	require.Equal(t, "abc123", status.Fingerprint)
}

func TestCheckLiveness_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := CheckLiveness(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	require.Error(t, err)
}

func TestCheckLiveness_UnreachableAddrIsError(t *testing.T) {
	_, err := CheckLiveness("127.0.0.1:1", 200*time.Millisecond)
	require.Error(t, err)
}
