package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Logging returns middleware that emits one structured log entry per
// request with method, path, status, duration and request ID, plus the
// user noted with RecordUser. Server errors are logged at error level,
// client errors at warn level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			// The principal is attached further down the chain, so it is
			// carried back through a holder on the context.
			holder := &userHolder{}
			r = r.WithContext(context.WithValue(r.Context(), userHolderKey{}, holder))

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			}
			if holder.user != "" {
				attrs = append(attrs, slog.String("user", holder.user))
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request completed", attrs...)
		})
	}
}

type userHolderKey struct{}

type userHolder struct {
	user string
}

// RecordUser notes the authenticated user for the access log entry of the
// current request. It is a no-op outside Logging.
func RecordUser(ctx context.Context, user string) {
	if h, ok := ctx.Value(userHolderKey{}).(*userHolder); ok {
		h.user = user
	}
}
