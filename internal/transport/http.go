package transport

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HTTPConfig controls the HTTP JSON-RPC endpoint (spec §4.8).
type HTTPConfig struct {
	// BasePath is the configured mount point for tool calls, default
	// "/mcp/"; "/api/" is always accepted as an alias on the same server.
	BasePath string
	Auth     Authenticator
}

const aliasBasePath = "/api/"

// NewMux builds the HTTP handler for the JSON-RPC endpoint, the health
// endpoints, and (if ws is non-nil) the live event-stream endpoint.
// Health endpoints are mounted unconditionally and bypass auth, per
// spec.md §4.8 "respond regardless of base path or auth state".
func NewMux(cfg HTTPConfig, router *Router, health Health, ws http.Handler) http.Handler {
	base := cfg.BasePath
	if base == "" {
		base = "/mcp/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	mux := http.NewServeMux()
	rpc := rpcHandler{router: router}
	gated := cfg.Auth.Gate(rpc)
	mux.Handle(base, gated)
	if base != aliasBasePath {
		mux.Handle(aliasBasePath, gated)
	}

	mux.HandleFunc("/health/liveness", health.Liveness)
	mux.HandleFunc("/health/readiness", health.Readiness)

	if ws != nil {
		mux.Handle("/events", cfg.Auth.Gate(ws))
	}
	return mux
}

// Health answers the two unauthenticated health endpoints spec.md §4.8
// requires.
type Health interface {
	Liveness(w http.ResponseWriter, r *http.Request)
	Readiness(w http.ResponseWriter, r *http.Request)
}

type rpcHandler struct {
	router *Router
}

func (h rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var req Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, newError(nil, codeParseError, "parse error: "+err.Error()))
		return
	}

	resp := h.router.Route(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
