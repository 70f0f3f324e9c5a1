package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports the liveness of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	startedAt time.Time
	deps      map[string]Pinger
}

func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{startedAt: time.Now().UTC(), deps: deps}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status":     healthWord(status),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"checks":     checks,
		"checked_at": time.Now().UTC(),
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
