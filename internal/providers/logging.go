package providers

import (
	"context"
	"log/slog"

	"github.com/preston-bernstein/pacs-bridge/internal/logging"
)

// LogWithProvider emits a log entry if logger is non-nil and always includes
// the provider name.
func LogWithProvider(ctx context.Context, logger *slog.Logger, level slog.Level, provider string, msg string, args ...any) {
	logger = logging.FromContext(ctx, logger)
	if logger == nil {
		return
	}
	args = append(args, slog.String(logging.FieldProvider, provider))
	logger.Log(ctx, level, msg, args...)
}
