package httpmw

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/collabcode/hub-service/pkg/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging + recovery для HTTP в одном месте; trace_id/span_id попадают в лог,
// если в контексте запроса есть активный span
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				slog.Error("http panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", p,
					"stack", string(debug.Stack()))
				http.Error(rec, "internal server error", http.StatusInternalServerError)
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
			}
			attrs = append(attrs, logger.AttrsFromCtx(r.Context())...)
			slog.LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		}()

		next.ServeHTTP(rec, r)
	})
}
