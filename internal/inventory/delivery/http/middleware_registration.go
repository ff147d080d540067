package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/colporter/pkg/logger"
)

const headerRequestID = "X-Request-ID"

const requestIDKey contextKey = "request_id"

// ServerOptions configures the stack placed in front of the inventory routes
type ServerOptions struct {
	Timeout        time.Duration
	AllowedOrigins []string
}

// Wrap installs the router-level middlewares and returns the CORS-aware
// handler to serve. Middlewares run after route matching, so spans and access
// logs are named by route template rather than raw path.
func Wrap(router *mux.Router, opts ServerOptions) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router.Use(
		recoverPanics,
		withRequestID,
		otelhttp.NewMiddleware("inventory",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + routeTemplate(r)
			}),
		),
		accessLog,
		withTimeout(opts.Timeout),
	)

	logger.Logger.Info().
		Dur("timeout", opts.Timeout).
		Strs("allowed_origins", opts.AllowedOrigins).
		Msg("HTTP middlewares registered")

	return cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", headerRequestID},
		ExposedHeaders:   []string{headerRequestID},
		AllowCredentials: true,
	}).Handler(router)
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(r.Context()).
					Interface("panic", rec).
					Str("method", r.Method).
					Str("route", routeTemplate(r)).
					Msg("Panic recovered")
				respondError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRequestID keeps the caller's request id (the gateway sets one) or mints
// a new one, and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		w.Header().Set("X-Content-Type-Options", "nosniff")

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id stored by the middleware stack
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		ctx := r.Context()
		event := logger.Info(ctx)
		switch {
		case rw.statusCode >= 500:
			event = logger.Error(ctx)
		case rw.statusCode >= 400:
			event = logger.Warn(ctx)
		}
		if bookID, ok := mux.Vars(r)["bookId"]; ok {
			event = event.Str("book_id", bookID)
		}
		event.
			Str("method", r.Method).
			Str("route", routeTemplate(r)).
			Str("program_id", r.URL.Query().Get("programId")).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestIDFrom(ctx)).
			Msg("HTTP request completed")
	})
}

func withTimeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"error":"request timed out"}`)
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
