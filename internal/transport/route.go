package transport

import (
	"context"
	"encoding/json"

	"github.com/agentmaild/agentmail/internal/dispatcher"
)

// Router answers one JSON-RPC request against a Dispatcher, shared
// verbatim by the HTTP handler and the stdio loop so tools/list and
// tools/call behave identically on both transports (spec P5/S6).
type Router struct {
	d *dispatcher.Dispatcher
}

func NewRouter(d *dispatcher.Dispatcher) *Router {
	return &Router{d: d}
}

// Route dispatches one request, returning nil for notifications (requests
// with no ID), matching the JSON-RPC 2.0 notification contract.
func (r *Router) Route(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "" && req.JSONRPC != jsonrpcVersion {
		return newError(req.ID, codeInvalidRequest, "unsupported jsonrpc version")
	}

	switch req.Method {
	case "tools/list":
		if req.ID == nil {
			return nil
		}
		return newResult(req.ID, map[string]any{"tools": r.d.ListTools()})
	case "resources/list":
		if req.ID == nil {
			return nil
		}
		return newResult(req.ID, map[string]any{"resources": []any{}})
	case "tools/call":
		return r.routeToolsCall(ctx, req)
	default:
		if req.ID == nil {
			return nil
		}
		return newError(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (r *Router) routeToolsCall(ctx context.Context, req *Request) *Response {
	var params toolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, codeInvalidParams, "malformed params: "+err.Error())
		}
	}
	if params.Name == "" {
		return newError(req.ID, codeInvalidParams, "missing required parameter: name")
	}

	env := r.d.Call(ctx, params.Name, params.Arguments)
	if req.ID == nil {
		return nil
	}
	return newResult(req.ID, env)
}
