package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// NewErrorHandler renders failures through classify and logs them: server
// errors at error level, client errors at debug level.
func NewErrorHandler(log *slog.Logger, classify ErrorClassifier) ErrorHandler {
	if classify == nil {
		classify = DefaultClassifier
	}
	return func(ctx Context, err error) {
		resp := JSONError(err, WithClassifier(classify)).(*jsonResponse)
		r := ctx.Request()
		if resp.status >= http.StatusInternalServerError {
			log.ErrorContext(ctx, "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				logger.Error(err))
		} else {
			log.DebugContext(ctx, "request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", resp.status),
				logger.Error(err))
		}
		if rerr := resp.Render(ctx.ResponseWriter(), r); rerr != nil {
			log.ErrorContext(ctx, "failed to write error response", logger.Error(rerr))
		}
	}
}
