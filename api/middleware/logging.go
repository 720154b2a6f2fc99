package middleware

import (
	"net/http"
	"time"

	"task-manager/logger"
)

// responseWriterInterceptor is a wrapper around http.ResponseWriter that allows us to capture the status code.
type responseWriterInterceptor struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// newResponseWriterInterceptor creates a new responseWriterInterceptor.
// It defaults the statusCode to 200, as WriteHeader is not always called.
func newResponseWriterInterceptor(w http.ResponseWriter) *responseWriterInterceptor {
	return &responseWriterInterceptor{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code and calls the original WriteHeader.
func (rwi *responseWriterInterceptor) WriteHeader(code int) {
	rwi.statusCode = code
	rwi.ResponseWriter.WriteHeader(code)
}

func (rwi *responseWriterInterceptor) Write(b []byte) (int, error) {
	n, err := rwi.ResponseWriter.Write(b)
	rwi.written += int64(n)
	return n, err
}

// Unwrap exposes the original writer to http.ResponseController, which the
// event stream needs for flushing.
func (rwi *responseWriterInterceptor) Unwrap() http.ResponseWriter {
	return rwi.ResponseWriter
}

// LoggingMiddleware creates a new HTTP middleware for logging requests and responses.
func LoggingMiddleware(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			rwi := newResponseWriterInterceptor(w)
			next.ServeHTTP(rwi, r)

			lg.HTTP(
				r.Method,
				r.URL.Path,
				rwi.statusCode,
				time.Since(startTime),
				map[string]any{
					"remote_addr":   r.RemoteAddr,
					"user_agent":    r.UserAgent(),
					"response_size": rwi.written,
				},
			)
		})
	}
}
