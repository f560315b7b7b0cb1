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

// WithConversation returns a logger with conversation context attached.
// Use this for all logging within a chat turn.
func WithConversation(conversationID, step string) *slog.Logger {
	return slog.With(
		"conversation_id", conversationID,
		"step", step,
	)
}

// WithMatching returns a logger scoped to one matching request.
func WithMatching(fingerprint string, quick bool) *slog.Logger {
	return slog.With(
		"fingerprint", fingerprint,
		"quick", quick,
	)
}
