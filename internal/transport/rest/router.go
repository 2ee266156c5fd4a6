package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/auth"
	"github.com/frahmantamala/travel-approval/internal/department"
	"github.com/frahmantamala/travel-approval/internal/metrics"
	"github.com/frahmantamala/travel-approval/internal/notification"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/report"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/transport/middleware"
	"github.com/frahmantamala/travel-approval/internal/transport/swagger"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	"github.com/frahmantamala/travel-approval/internal/user"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

const (
	APIPrefix   = "/api/v1"
	OpenAPIPath = "./api/openapi.yml"
)

// Handlers groups everything the router mounts. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Department   *department.Handler
	Request      *travelrequest.Handler
	Approval     *approval.Handler
	Notification *notification.Handler
	Report       *report.Handler
	Validator    *middleware.OpenAPIValidator
	HealthChecks []Check
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, cfg internal.ServerConfig, metricsCfg internal.MetricsConfig, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, h.HealthChecks...)
	az := rbac.NewAuthorization(logger)
	limiter := middleware.NewRateLimiter(transport.NewBaseHandler(logger), cfg.RateLimitPerSec, cfg.RateLimitBurst)

	router.Use(middleware.CORS(middleware.SplitOrigins(cfg.AllowedOrigins)))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.Metrics)

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, OpenAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	if metricsCfg.Enabled {
		path := metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, metrics.Handler())
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Group(func(lr chi.Router) {
			lr.Use(middleware.LoggingMiddleware(logger))
			if h.Validator != nil {
				lr.Use(h.Validator.Middleware)
			}

			lr.Route("/auth", func(sr chi.Router) {
				sr.Use(limiter.Middleware)
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
				sr.Post("/logout", h.Auth.Logout)
			})

			// invitees answer with the emailed token instead of a session
			if h.Approval != nil {
				lr.With(limiter.Middleware).Post("/invitations/{token}/respond", h.Approval.Respond)
			}

			lr.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)

				if h.User != nil {
					pr.Get("/users/me", h.User.GetCurrentUser)
				}

				if h.Department != nil {
					pr.Get("/departments", h.Department.GetDepartments)
					pr.Get("/departments/{id}/budget", h.Department.GetBudget)
				}

				if h.Request != nil {
					pr.Get("/availability", h.Request.CheckAvailability)

					pr.Route("/requests", func(rr chi.Router) {
						rr.Get("/", h.Request.List)
						rr.Get("/{id}", h.Request.Get)
						rr.Get("/{id}/history", h.Request.History)
						rr.Get("/{id}/tracking", h.Request.Tracking)
						if h.Approval != nil {
							rr.Get("/{id}/invitations", h.Approval.Summary)
						}

						// workflow mutations
						rr.Group(func(mr chi.Router) {
							mr.Use(limiter.Middleware)
							mr.Post("/", h.Request.Submit)
							mr.Post("/{id}/approve", h.Request.Approve)
							mr.Post("/{id}/reject", h.Request.Reject)
							mr.Post("/{id}/cancel", h.Request.Cancel)
							mr.Post("/{id}/return", h.Request.Return)
							mr.Post("/{id}/sign", h.Request.Sign)
							mr.Post("/{id}/complete", h.Request.Complete)
							if h.Approval != nil {
								mr.Post("/{id}/invitations", h.Approval.Invite)
							}

							mr.Group(func(ar chi.Router) {
								ar.Use(az.RequireAny(workflow.RoleAdmin))
								ar.Post("/{id}/assign", h.Request.Assign)
							})
						})
					})
				}

				if h.Approval != nil {
					pr.Get("/approvals/pending", h.Approval.GetPending)
				}

				if h.Notification != nil {
					pr.Get("/notifications", h.Notification.GetInbox)
					pr.Post("/notifications/read-all", h.Notification.MarkAllRead)
					pr.Post("/notifications/{id}/read", h.Notification.MarkRead)
				}

				if h.Report != nil {
					pr.Group(func(ar chi.Router) {
						ar.Use(az.RequireAny(workflow.RoleAdmin))
						ar.Get("/reports/history.xlsx", h.Report.ExportHistory)
					})
				}
			})
		})

		// the push channel skips body logging and validation; browsers pass the token in the query
		if h.Notification != nil {
			r.Group(func(wr chi.Router) {
				wr.Use(middleware.QueryToken)
				wr.Use(h.Auth.AuthMiddleware)
				wr.Get("/notifications/ws", h.Notification.ServeWS)
			})
		}
	})
}
