package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"task-manager/errors"
	"task-manager/events"
	"task-manager/logger"
)

const (
	streamBuffer    = 64
	streamHeartbeat = 15 * time.Second
)

// NewEventsHandler streams every notification as a server-sent event whose
// data is the JSON envelope. Slow clients miss events rather than stall
// the emitter.
func NewEventsHandler(sub events.Subscribable, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// the stream outlives the server's write timeout
		if err := rc.SetWriteDeadline(time.Time{}); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
			respondWithError(w, errors.NewInternalError("cannot extend write deadline"), lg)
			return
		}

		ch := make(chan events.Envelope, streamBuffer)
		off := events.OnAll(sub, func(n events.Notification) {
			select {
			case ch <- n.Envelope():
			default:
				lg.Warn("event stream client too slow, dropping event", map[string]any{
					"event":       n.Name,
					"remote_addr": r.RemoteAddr,
				})
			}
		})
		defer off()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			lg.Error("event stream not supported", map[string]any{"error": err.Error()})
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			case env := <-ch:
				data, err := json.Marshal(env)
				if err != nil {
					lg.Error("failed to encode event", map[string]any{"error": err.Error(), "event": env.Event})
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
