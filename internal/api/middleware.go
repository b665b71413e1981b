package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/signing"
)

const maxBodySize = 64 * 1024

// SignatureMiddleware rejects requests whose body is not signed with secret.
// The body is buffered and handed on unchanged.
func SignatureMiddleware(secret string, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			err = signing.Verify(secret, body,
				r.Header.Get(signing.HeaderTimestamp),
				r.Header.Get(signing.HeaderSignature),
				now(), signing.DefaultTolerance)
			if err != nil {
				msg := "invalid signature"
				switch {
				case errors.Is(err, signing.ErrMissingSignature):
					msg = "missing signature headers"
				case errors.Is(err, signing.ErrStaleSignature):
					msg = "signature timestamp outside tolerance"
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
