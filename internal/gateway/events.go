// ABOUTME: Server-Sent Events stream of persisted inbox messages
// ABOUTME: Subscribes to the EventBroadcaster for one thread or all threads

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/coven-inbox/internal/conversation"
)

// sseKeepalive is how often an idle stream gets a comment line so proxies
// keep the connection open.
const sseKeepalive = 15 * time.Second

// handleEvents handles GET /events[?threadId=X]. The stream opens with a
// "ready" event and then emits one "message" event per persisted message.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		threadID = conversation.AllThreads
	}

	ctx := r.Context()
	events, subID := g.broadcaster.Subscribe(ctx, threadID)
	defer g.broadcaster.Unsubscribe(threadID, subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "ready", map[string]string{"threadId": threadID})
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-events:
			if !ok {
				return
			}
			g.writeSSEEvent(w, "message", msg)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
