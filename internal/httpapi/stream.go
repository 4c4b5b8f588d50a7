package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Stream handles Server-Sent Events for the moderation action feed. The
// subscription is scoped to the request context, so a dropped client
// unsubscribes itself.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	ch := a.events.Subscribe(r.Context())

	_, _ = io.WriteString(w, "retry: 3000\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: moderation\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
