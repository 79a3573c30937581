// ABOUTME: HTTP server struct, constructor, and handler wiring for TeamPulse.
// ABOUTME: Holds the store, config, evaluator, mailer, and auth dependencies.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/pulsehq/teampulse/internal/config"
	"github.com/pulsehq/teampulse/internal/notify"
	"github.com/pulsehq/teampulse/internal/rbac"
	"github.com/pulsehq/teampulse/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	eval        *rbac.Evaluator
	mailer      *notify.Mailer // nil disables email notifications
	argon2Sem   chan struct{}
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server. The evaluator is constructed here from the
// config's owner allowlist and the built-in permission matrix, and is
// immutable for the process lifetime.
func NewServer(s *store.Store, cfg *config.Config, mailer *notify.Mailer) *Server {
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	return &Server{
		store:  s,
		cfg:    cfg,
		eval:   rbac.NewEvaluator(rbac.Config{OwnerEmails: cfg.OwnerEmailList()}),
		mailer: mailer,
		// Bounded argon2 concurrency; each hash allocates ~19.5 MB.
		argon2Sem: make(chan struct{}, cfg.Argon2MaxConcurrent),
		// 10 auth requests per minute per IP, burst of 10.
		rateLimiter: newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL),
	}
}

// Evaluator exposes the access-control evaluator for tests and CLI helpers.
func (srv *Server) Evaluator() *rbac.Evaluator { return srv.eval }

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// Security headers first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — no endpoint accepts large payloads.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 sub-router; auth endpoints use huma (OpenAPI 3.1) ─────────────
	apiRouter := chi.NewRouter()
	// Credential endpoints are brute-forceable; rate-limit them per IP.
	// Applied by path because huma registers its routes on the shared router.
	limit := srv.authRateLimit()
	apiRouter.Use(func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/auth/login"),
				strings.HasSuffix(r.URL.Path, "/auth/register"),
				strings.HasSuffix(r.URL.Path, "/auth/refresh"):
				limited.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	})
	humaConfig := huma.DefaultConfig("TeamPulse API", "0.1.0")
	humaConfig.Info.Description = "Employee engagement platform API"
	humaAPI := humachi.New(apiRouter, humaConfig)
	registerAuthRoutes(humaAPI, srv)

	// ── Directory and admin routes (chi, for per-route RBAC middleware) ──────
	apiRouter.Route("/users", func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())
		r.With(srv.RequireUser()).Get("/", srv.listUsersHandler)
		r.With(srv.RequireUser()).Get("/{user_id}", srv.getUserHandler)
		r.With(srv.RequireUser()).Put("/{user_id}/role", srv.assignRoleHandler)
		r.With(srv.RequirePermission(rbac.PermEditOwnProfile)).Patch("/me", srv.updateProfileHandler)
	})

	apiRouter.Route("/invitations", func(r chi.Router) {
		// Accepting is unauthenticated — the invitee has no account yet.
		r.With(srv.authRateLimit()).Post("/accept", srv.acceptInvitationHandler)

		r.Group(func(r chi.Router) {
			r.Use(srv.RequireAuthenticated())
			r.With(srv.RequirePermission(rbac.PermInviteUsers)).Post("/", srv.createInvitationHandler)
			r.With(srv.RequirePermission(rbac.PermInviteUsers)).Get("/", srv.listInvitationsHandler)
			r.With(srv.RequirePermission(rbac.PermInviteUsers)).Delete("/{id}", srv.deleteInvitationHandler)
		})
	})

	apiRouter.Route("/audit", func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())
		r.With(srv.RequirePermission(rbac.PermViewAuditLog)).Get("/", srv.listAuditEventsHandler)
	})

	apiRouter.Route("/recognitions", func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())
		r.With(srv.RequirePermission(rbac.PermCreateRecognition)).Post("/", srv.createRecognitionHandler)
		r.With(srv.RequirePermission(rbac.PermViewRecognition)).Get("/", srv.listRecognitionsHandler)
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use — the caller should return 503 immediately, not block.
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: encode response", "error", err)
		}
	}
}
