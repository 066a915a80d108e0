package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/go-chi/chi/v5/middleware"
)

// NewStructuredLogger logs one line per request. Peer traffic is tagged with the sending agent so
// a settlement can be followed across both runtimes.
func NewStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				attrs := []any{
					slog.Group("request",
						slog.String("id", middleware.GetReqID(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
					),
					slog.Group("response",
						slog.Int("status", status),
						slog.Int("bytes", ww.BytesWritten()),
						slog.Duration("latency", time.Since(start)),
					),
				}
				if strings.HasPrefix(r.URL.Path, "/peer/") {
					attrs = append(attrs, slog.String("peer", r.Header.Get(peer.HeaderAgentID)))
				}

				switch {
				case status >= 500:
					logger.Error("server error", attrs...)
				case status >= 400:
					logger.Warn("request rejected", attrs...)
				default:
					logger.Info("request completed", attrs...)
				}
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
