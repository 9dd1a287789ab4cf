// Package server wraps net/http's Serve/Shutdown lifecycle behind Manager:
// non-blocking Start, graceful Shutdown bounded by a timeout, SIGINT/SIGTERM
// handling via WaitForShutdown, and an async error channel for listen
// failures. Both the HTTP JSON-RPC transport and the websocket event stream
// mount their handlers on the mux passed to NewManager and share one
// Manager per listening port.
package server
