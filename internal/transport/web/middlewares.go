package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

var ErrPanic = errors.New("recovered panic")

func (s *Server) loggerMiddleware() func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now().UTC()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			traceID := chimiddleware.GetReqID(r.Context())

			if spanTraceID := uuid.UUID(trace.SpanContextFromContext(r.Context()).TraceID()); spanTraceID != uuid.Nil {
				traceID = spanTraceID.String()
			}

			s.l.LogInfo(
				"type: access, method: %s, url: %s, status: %d, proto: %s, userAgent: %s, traceID: %s, latency: %s",
				r.Method,
				r.URL.Path,
				ww.Status(),
				r.Proto,
				r.Header.Get("User-Agent"),
				traceID,
				time.Since(start),
			)
		})
	}
}

func (s *Server) recoverMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if re := recover(); re != nil {
					if re == http.ErrAbortHandler { //nolint:errorlint,goerr113
						panic(re)
					}

					err, ok := re.(error)
					if !ok {
						err = fmt.Errorf("%v: %w", re, ErrPanic)
					}

					s.l.LogErrorf("type: panic, error: %v", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
