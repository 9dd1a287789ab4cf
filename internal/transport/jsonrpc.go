// Package transport implements the Transport component (spec §4.8):
// an HTTP JSON-RPC endpoint, a stdio JSON-RPC loop, bearer-token auth, and
// health endpoints, all driving the same internal/dispatcher.Dispatcher so
// tools/list and tools/call behave identically regardless of which
// transport carried them (spec S5, S6).
//
// HTTP shape is adapted from the teacher's agent/protocol/mcp.MCPHandler
// (method routing, ServeHTTP dispatch table); the stdio loop is adapted
// from agent/protocol/mcp.StdioTransport, generalized from that file's
// Content-Length-header framing to the newline-delimited framing spec.md
// §4.8 calls for.
package transport

import "encoding/json"

// Request is one inbound JSON-RPC 2.0 envelope (spec §6.1). The methods
// answered are "tools/list", "tools/call" and "resources/list" (always an
// empty list); any other method is rejected as MethodNotFound, or gets no
// reply when it is a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the JSON-RPC 2.0 reply envelope. Result and Error are
// mutually exclusive.
type Response struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id,omitempty"`
	Result  any           `json:"result,omitempty"`
	Error   *WireError    `json:"error,omitempty"`
}

// WireError is a transport-level JSON-RPC error (malformed request,
// unknown method) as distinct from an application error, which travels
// inside a successful envelope's result.isError (spec §6.1).
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const jsonrpcVersion = "2.0"

func newResult(id any, result any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

func newError(id any, code int, message string) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: &WireError{Code: code, Message: message}}
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// toolsCallParams is the params payload of a "tools/call" request.
type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
