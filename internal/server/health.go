package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/quiz-widget/pkg/http/errors"
)

// Checker checks one dependency.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

func handleHealth(logger zerolog.Logger, checkers map[string]Checker) http.HandlerFunc {
	type result struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]result{}
		status := http.StatusOK

		for name, c := range checkers {
			if err := c.Check(ctx); err != nil {
				logger.Error().Err(err).Str("name", name).Msg("health check failed")
				checks[name] = result{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = result{Status: "ok"}
		}

		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
			body["error"] = httperrors.ErrCodeServiceUnavailable
		}
		writeJSON(w, status, body)
	}
}
