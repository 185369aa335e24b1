package router

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WSSender is the production Sender, wrapping a coder/websocket
// connection the way the teacher's LokutorTTS client wraps its
// streaming socket: one connection, JSON frames, abnormal-close on
// write failure.
type WSSender struct {
	conn *websocket.Conn
}

// NewWSSender wraps an already-accepted/dialed connection.
func NewWSSender(conn *websocket.Conn) *WSSender {
	return &WSSender{conn: conn}
}

func (w *WSSender) Send(ctx context.Context, msg map[string]interface{}) error {
	if err := wsjson.Write(ctx, w.conn, msg); err != nil {
		w.conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return err
	}
	return nil
}

func (w *WSSender) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

// subscribeRequest is the client's initial JSON frame, per spec.md §6:
// {"subscribe": [event_type_name, ...]}.
type subscribeRequest struct {
	Subscribe []string `json:"subscribe"`
}

// subscribeAck is sent back once the server has registered the client.
type subscribeAck struct {
	Ack       bool     `json:"ack"`
	Subscribe []string `json:"subscribe"`
}

// Accept reads the client's subscribe frame, registers it with r under
// id, and replies with an acknowledgment, per spec.md §6's handshake.
func Accept(ctx context.Context, r *Router, id string, conn *websocket.Conn) error {
	var req subscribeRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		return err
	}

	sender := NewWSSender(conn)
	r.AddClient(id, req.Subscribe, sender)

	return wsjson.Write(ctx, conn, subscribeAck{Ack: true, Subscribe: req.Subscribe})
}
