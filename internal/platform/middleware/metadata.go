package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"afmcheck/pkg/requestcontext"
)

// Metadata captures the client IP and user agent for audit attribution. The
// raw user agent string goes to the audit trail; a parsed summary is logged
// at debug level to help spot automated callers.
func Metadata(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			rawUA := r.Header.Get("User-Agent")
			ctx = requestcontext.WithClientIP(ctx, ip)
			ctx = requestcontext.WithUserAgent(ctx, rawUA)

			if rawUA != "" && logger.Enabled(ctx, slog.LevelDebug) {
				ua := useragent.New(rawUA)
				browser, version := ua.Browser()
				logger.DebugContext(ctx, "request metadata",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", ip,
					"ua_browser", browser,
					"ua_version", version,
					"ua_os", ua.OS(),
					"ua_bot", ua.Bot(),
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
