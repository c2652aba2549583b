package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"transitmatrix/internal/logging"
)

const (
	compressMinSize = 1024
	compressLevel   = 6
)

func withMiddleware(h http.Handler, logger *slog.Logger, ready <-chan struct{}) http.Handler {
	return securityHeaders(requestLogger(compress(waitForData(h, ready), logger), logger))
}

// waitForData answers 503 while the travel-time table is being computed.
// The health check passes through so orchestrators can tell the process is up.
func waitForData(next http.Handler, ready <-chan struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ready:
			next.ServeHTTP(w, r)
			return
		default:
		}

		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"travel time table is being computed"}` + "\n"))
	})
}

// compress gzips responses above compressMinSize. Travel-time rows for a
// busy station run to tens of kilobytes and compress well.
func compress(next http.Handler, logger *slog.Logger) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(compressMinSize),
		gzhttp.CompressionLevel(compressLevel),
	)
	if err != nil {
		logger.Warn("compression wrapper config rejected, using defaults", "error", err)
		return gzhttp.GzipHandler(next)
	}
	return wrapper(next)
}

func requestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		reqLogger := logger.With("method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(sw, r.WithContext(logging.WithLogger(r.Context(), reqLogger)))
		reqLogger.Info("request",
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
