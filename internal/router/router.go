package router

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/booking"
	"github.com/ovaphlow/parkpro/service-core-go/internal/fastag"
	"github.com/ovaphlow/parkpro/service-core-go/internal/identity"
	"github.com/ovaphlow/parkpro/service-core-go/internal/parking"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user"
)

// HeaderRequestID correlates a request across logs.
const HeaderRequestID = "X-Request-ID"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware keeps an incoming X-Request-ID or generates one, and
// echoes it on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each request with the sugared logger. Server errors
// are logged at warn, everything else at debug.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", r.Header.Get(HeaderRequestID),
			)
		})
	}
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Errorw("handler panicked", "path", r.URL.Path, "panic", rec, "request_id", r.Header.Get(HeaderRequestID))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"detail":"Internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware allows any origin. The mobile client calls the API
// cross-origin and carries no cookies.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Expose-Headers", HeaderRequestID)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers and collaborators the routes need. Tokens verifies
// bearer tokens on authenticated routes and may be nil, as may Gatherer.
type Deps struct {
	Users    *user.Handler
	Parking  *parking.Handler
	Bookings *booking.Handler
	Fastag   *fastag.Handler
	Tokens   identity.TokenParser
	Gatherer prometheus.Gatherer
}

// RegisterRoutes mounts HTTP handlers on the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// auth and recovery
	withIdentity := identity.Middleware(d.Tokens, logger)
	mux.HandleFunc("POST /login", d.Users.Login)
	mux.Handle("POST /change-password", withIdentity(http.HandlerFunc(d.Users.ChangePassword)))
	mux.HandleFunc("POST /send-verification-code", d.Users.SendVerificationCode)
	mux.HandleFunc("POST /change-password-with-code", d.Users.ChangePasswordWithCode)

	// users
	mux.HandleFunc("POST /users", d.Users.Create)
	mux.HandleFunc("GET /users/{id}", d.Users.Get)
	mux.HandleFunc("GET /users/email/{email}", d.Users.GetByEmail)
	mux.HandleFunc("PUT /users/update-profile", d.Users.UpdateProfile)

	// stations and parking spots
	mux.HandleFunc("GET /parking-spots", d.Parking.ListSpots)
	mux.HandleFunc("POST /parking-spots", d.Parking.CreateSpot)
	mux.HandleFunc("GET /stations/{station_id}", d.Parking.GetStation)
	mux.HandleFunc("GET /slots/{station_id}", d.Parking.ListSlots)

	// bookings
	mux.HandleFunc("GET /bookings/{user_id}", d.Bookings.List)
	mux.HandleFunc("POST /bookings", d.Bookings.Create)
	mux.HandleFunc("PUT /bookings/{booking_id}/cancel", d.Bookings.Cancel)
	mux.HandleFunc("GET /slotbookings/{user_id}", d.Bookings.ListSlotBookings)

	// fastag
	mux.HandleFunc("GET /fastag/{user_id}/balance", d.Fastag.Balance)
	mux.HandleFunc("POST /fastag/recharge", d.Fastag.Recharge)
	mux.HandleFunc("GET /fastag/{user_id}/transactions", d.Fastag.Transactions)
	mux.HandleFunc("POST /fastag/link-vehicle", d.Fastag.LinkVehicle)
	mux.HandleFunc("POST /fastag/deactivate", d.Fastag.Deactivate)

	var h http.Handler = mux
	h = SecurityHeadersMiddleware()(h)
	h = CORSMiddleware()(h)
	h = RecoverMiddleware(logger)(h)
	h = LoggingMiddleware(logger)(h)
	h = RequestIDMiddleware()(h)
	return h
}
