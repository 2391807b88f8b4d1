package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"photomap/internal/logging"
)

// responseWriter captures the status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// LoggingConfig selects which routes the request logger records.
type LoggingConfig struct {
	// SkipRoutes are mux route names that are never logged.
	SkipRoutes []string
	// LogProbes logs health probe routes. Probes hit the listener every few
	// seconds, so they are dropped by default.
	LogProbes bool
}

// DefaultLoggingConfig skips metrics scrapes and health probes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{SkipRoutes: []string{"metrics"}}
}

var probeRoutes = map[string]bool{
	"health":  true,
	"healthz": true,
	"livez":   true,
	"readyz":  true,
}

// Logger returns mux middleware that writes one line per request. Server
// errors log at warn, operator actions (anything but GET and HEAD) at info,
// and reads at debug.
func Logger(config LoggingConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeName(r)
			if shouldSkip(route, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			line := formatRequest(r, route, wrapped, time.Since(start))
			switch requestLevel(r.Method, wrapped.statusCode) {
			case logging.LevelWarn:
				logging.Warn("%s", line)
			case logging.LevelInfo:
				logging.Info("%s", line)
			default:
				logging.Debug("%s", line)
			}
		})
	}
}

func requestLevel(method string, status int) logging.LogLevel {
	switch {
	case status >= http.StatusInternalServerError:
		return logging.LevelWarn
	case method != http.MethodGet && method != http.MethodHead:
		return logging.LevelInfo
	default:
		return logging.LevelDebug
	}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

func shouldSkip(route string, config LoggingConfig) bool {
	for _, skip := range config.SkipRoutes {
		if route == skip {
			return true
		}
	}
	return !config.LogProbes && probeRoutes[route]
}

// formatRequest renders a key=value line. The path is sanitized because it
// carries client-chosen file names.
func formatRequest(r *http.Request, route string, rw *responseWriter, duration time.Duration) string {
	if route == "" {
		route = "-"
	}
	return fmt.Sprintf("http client=%s method=%s route=%s path=%q status=%d bytes=%d duration=%dms",
		clientIP(r),
		sanitizeLogField(r.Method),
		route,
		sanitizeLogField(r.URL.Path),
		rw.statusCode,
		rw.bytesWritten,
		duration.Milliseconds(),
	)
}

// clientIP returns the peer address. The operations listener is scraped
// directly, so forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return sanitizeLogField(r.RemoteAddr)
	}
	return host
}

// sanitizeLogField removes control characters that could forge log lines or
// inject terminal escapes.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\x00', r == '\x1b':
			continue
		case r < 0x20 && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
