package rescan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
	"github.com/dlparker/palaver/pkg/router"
)

// RemoteClient dials a remote palaverd's WebSocket event channel and
// drives a Rescanner from the DraftStart/AudioChunk/DraftEnd frames it
// receives, the same websocket.Dial + JSON read-loop teacher's lokutor.go
// client uses for its own streaming socket.
type RemoteClient struct {
	url    string
	r      *Rescanner
	logger logging.Logger
}

// NewRemoteClient builds a client that will dial remoteURL (e.g.
// "ws://host:8088/ws") and drive r.
func NewRemoteClient(remoteURL string, r *Rescanner, logger logging.Logger) *RemoteClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &RemoteClient{url: remoteURL, r: r, logger: logger}
}

// Run dials the remote event channel, subscribes to the classes the
// Rescanner needs, and dispatches frames until ctx is canceled or the
// connection drops. It blocks for the life of the connection.
func (c *RemoteClient) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("rescan: dial %s: %w", c.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := map[string]interface{}{
		"subscribe": []string{router.ClassDraftStart, router.ClassAudioChunk, router.ClassDraftEnd},
	}
	if err := wsjson.Write(ctx, conn, sub); err != nil {
		return fmt.Errorf("rescan: subscribe: %w", err)
	}
	var ack map[string]interface{}
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		return fmt.Errorf("rescan: subscribe ack: %w", err)
	}

	for {
		var msg map[string]interface{}
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("rescan: read: %w", err)
		}
		c.dispatch(ctx, msg)
	}
}

// dispatch re-marshals one already-decoded frame back to JSON and decodes
// it into the Draft/AudioChunk shape its event_class names, then routes it
// to the matching Rescanner entry point.
func (c *RemoteClient) dispatch(ctx context.Context, msg map[string]interface{}) {
	class, _ := msg["event_class"].(string)
	raw, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("rescan: re-marshal frame failed", "err", err)
		return
	}

	switch class {
	case router.ClassDraftStart:
		var d events.Draft
		if err := json.Unmarshal(raw, &d); err != nil {
			c.logger.Error("rescan: decode DraftStart failed", "err", err)
			return
		}
		c.r.OnRemoteDraftStart(d)
	case router.ClassAudioChunk:
		var chunk audio.AudioChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			c.logger.Error("rescan: decode AudioChunk failed", "err", err)
			return
		}
		c.r.OnRemoteAudioChunk(chunk)
	case router.ClassDraftEnd:
		var d events.Draft
		if err := json.Unmarshal(raw, &d); err != nil {
			c.logger.Error("rescan: decode DraftEnd failed", "err", err)
			return
		}
		c.r.OnRemoteDraftEnd(ctx, d)
	}
}
