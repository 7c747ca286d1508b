package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
)

const healthCheckTimeout = 3 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response", "error", err)
	}
}

func (h *Handlers) apiView(w http.ResponseWriter, r *http.Request) {
	v, err := h.view(w, r)
	if err != nil {
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// apiHistory returns the newest journal entries; ?limit= is clamped by the journal.
func (h *Handlers) apiHistory(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "journal not configured", http.StatusNotFound)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to read journal", "error", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) apiStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		http.Error(w, "analytics not configured", http.StatusNotFound)
		return
	}
	stats, err := h.stats.TeamStats(r.Context())
	if err != nil {
		logger.Error("Failed to read team stats", "error", err)
		http.Error(w, "failed to read stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runChecks probes every dependency and reports whether all critical ones passed.
func (h *Handlers) runChecks(ctx context.Context, criticalOnly bool) (map[string]checkResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]checkResult, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if criticalOnly && !c.Critical {
			continue
		}
		if err := c.Check(ctx); err != nil {
			results[c.Name] = checkResult{Status: "unhealthy", Error: err.Error()}
			if c.Critical {
				healthy = false
			}
			continue
		}
		results[c.Name] = checkResult{Status: "healthy"}
	}
	return results, healthy
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.runChecks(r.Context(), false)
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"views":     h.store.Len(),
		"checks":    checks,
	})
}

// liveness answers Kubernetes liveness probes without touching dependencies.
func (h *Handlers) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// readiness fails while any critical dependency is down.
func (h *Handlers) readiness(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.runChecks(r.Context(), true)
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not_ready",
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}
