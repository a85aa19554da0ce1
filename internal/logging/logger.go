package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithActivity returns a logger scoped to a fan-out activity.
func WithActivity(verb, projectID, actorID string) *slog.Logger {
	return slog.With(
		"activity", verb,
		"project_id", projectID,
		"actor_id", actorID,
	)
}

// WithConnection returns a logger scoped to a live-channel connection.
func WithConnection(connID, userID string) *slog.Logger {
	return slog.With(
		"conn_id", connID,
		"user_id", userID,
	)
}
