package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// EventStream serves /events: a websocket diagnostic feed of Event Bus
// topics, one JSON-encoded event per websocket text message (spec §4.8). It is not the TUI (out of
// scope per spec §1) — just a raw, schema-stable feed any external tool
// can attach to. Grounded on the teacher's agent/protocol/mcp
// WebSocketTransport state-machine idiom, generalized from a reconnecting
// client to a one-shot server-side broadcaster since there is exactly one
// direction of traffic (bus to client) and no client-initiated messages to
// frame.
type EventStream struct {
	Bus    *eventbus.Bus
	Logger *zap.Logger
}

const eventWriteTimeout = 5 * time.Second

func (s EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Logger.Debug("events: accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	events, unsubscribe := s.Bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.Debug("events: write failed, dropping client", zap.Error(err))
				return
			}
		}
	}
}
