package handlers

import (
	"net/http"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
)

// events streams the caller's view fragment every time the view changes.
func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	v, err := h.view(w, r)
	if err != nil {
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}
	id := v.ID()

	ch := h.store.Subscribe()
	defer h.store.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// last is the fragment the client holds; keepalive ticks resend the view if it drifted
	var last string
	send := func(onlyChanged bool) bool {
		html, err := renderToString(r, h.fragment(v.Snapshot()))
		if err != nil {
			logger.Error("Failed to render view fragment", "view_id", id, "error", err)
			return false
		}
		if onlyChanged && html == last {
			return true
		}
		last = html
		writeSSE(w, "view", html)
		flusher.Flush()
		return true
	}
	if !send(false) {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	logger.Debug("Event stream opened", "view_id", id)
	for {
		select {
		case <-r.Context().Done():
			logger.Debug("Event stream closed", "view_id", id)
			return
		case <-v.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ViewID != id {
				continue
			}
			// coalesce bursts (drum roll) into one render
			for drained := false; !drained; {
				select {
				case _, open := <-ch:
					if !open {
						return
					}
				default:
					drained = true
				}
			}
			if !send(false) {
				return
			}
		case <-ticker.C:
			// an open stream keeps its session from being reaped
			if _, ok := h.store.Get(id); !ok {
				return
			}
			if !send(true) {
				return
			}
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}
