package requestlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/watzon/saleorhook/internal/requestctx"
)

// Middleware records every request whose path satisfies match.
func Middleware(store *Store, domainHeader, eventHeader string, match func(path string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &statusCapture{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			store.Add(Entry{
				ID:         requestctx.RequestID(r.Context()),
				Timestamp:  start,
				Method:     r.Method,
				Path:       r.URL.Path,
				Domain:     strings.ToLower(strings.TrimSpace(r.Header.Get(domainHeader))),
				Event:      strings.TrimSpace(r.Header.Get(eventHeader)),
				Status:     wrapped.status,
				Duration:   duration,
				DurationMS: float64(duration.Microseconds()) / 1000.0,
				BytesIn:    r.ContentLength,
				ClientIP:   ClientIP(r),
			})
		})
	}
}

// ClientIP returns the originating client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (w *statusCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
