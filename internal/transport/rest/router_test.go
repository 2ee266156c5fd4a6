package rest_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/auth"
	"github.com/frahmantamala/travel-approval/internal/notification"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/store/storetest"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/transport/middleware"
	"github.com/frahmantamala/travel-approval/internal/transport/rest"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

type stubAuth struct {
	actors map[string]*rbac.Actor
}

func (s *stubAuth) Authenticate(ctx context.Context, dto auth.LoginDTO) (auth.AuthTokens, error) {
	return auth.AuthTokens{AccessToken: "a", RefreshToken: "r"}, nil
}

func (s *stubAuth) RefreshTokens(ctx context.Context, refreshToken string) (auth.AuthTokens, error) {
	return auth.AuthTokens{}, internal.ErrInvalidToken
}

func (s *stubAuth) ValidateAccessToken(token string) (*auth.Claims, error) {
	if _, ok := s.actors[token]; !ok {
		return nil, internal.ErrInvalidToken
	}
	return &auth.Claims{UserID: token}, nil
}

func (s *stubAuth) Actor(ctx context.Context, userID string) (*rbac.Actor, error) {
	return s.actors[userID], nil
}

// stubRequests implements only what the routes under test reach; anything
// else hits the nil interface and panics.
type stubRequests struct {
	travelrequest.ServiceAPI
}

func (s *stubRequests) List(ctx context.Context, actor *rbac.Actor, q travelrequest.ListQuery) ([]*travelrequest.Request, error) {
	return nil, nil
}

func (s *stubRequests) AssignResources(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.AssignDTO) (*travelrequest.AssignResult, error) {
	return &travelrequest.AssignResult{Request: &travelrequest.Request{ID: id}}, nil
}

var _ = Describe("Router", func() {
	var (
		db       *gorm.DB
		router   *chi.Mux
		handlers rest.Handlers
		server   internal.ServerConfig
	)

	BeforeEach(func() {
		var err error
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())

		lg := logger.Discard()
		base := transport.NewBaseHandler(lg)
		stub := &stubAuth{actors: map[string]*rbac.Actor{
			"staff": {ID: "staff", Caps: rbac.Capabilities(0).With(workflow.RoleRequester)},
			"admin": {ID: "admin", Caps: rbac.Capabilities(0).With(workflow.RoleRequester, workflow.RoleAdmin)},
		}}
		handlers = rest.Handlers{
			Auth:         auth.NewHandler(base, stub, stub),
			Request:      travelrequest.NewHandler(base, &stubRequests{}),
			Notification: notification.NewHandler(base, nil, notification.NewHub(lg), []string{"*"}),
		}
		server = internal.ServerConfig{AllowedOrigins: "https://portal.example.edu"}
	})

	AfterEach(func() {
		storetest.Close(db)
	})

	build := func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, sqlDB, handlers, server, internal.MetricsConfig{Enabled: true, Path: "/metrics"}, logger.Discard())
	}

	do := func(method, path, token string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("answers liveness and readiness", func() {
		build()
		Expect(do(http.MethodGet, "/api/v1/ping", "", nil).Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodGet, "/api/v1/health", "", nil).Code).To(Equal(http.StatusOK))
	})

	It("reports unhealthy when a dependency check fails", func() {
		handlers.HealthChecks = []rest.Check{{Name: "nats", Probe: func(context.Context) error { return errors.New("disconnected") }}}
		build()
		rec := do(http.MethodGet, "/api/v1/health", "", nil)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rec.Body.String()).To(ContainSubstring("disconnected"))
	})

	It("requires a bearer token and tags every response with a request id", func() {
		build()
		rec := do(http.MethodGet, "/api/v1/requests", "", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Header().Get(middleware.RequestIDHeader)).NotTo(BeEmpty())

		Expect(do(http.MethodGet, "/api/v1/requests", "staff", nil).Code).To(Equal(http.StatusOK))
	})

	It("answers CORS preflight for allowed origins", func() {
		build()
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/requests", nil)
		req.Header.Set("Origin", "https://portal.example.edu")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://portal.example.edu"))
	})

	It("limits resource assignment to administrators", func() {
		build()
		body := []byte(`{"vehicle_id":"v1"}`)
		Expect(do(http.MethodPost, "/api/v1/requests/r1/assign", "staff", body).Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodPost, "/api/v1/requests/r1/assign", "admin", body).Code).To(Equal(http.StatusOK))
	})

	It("turns a handler panic into a 500 envelope", func() {
		build()
		rec := do(http.MethodGet, "/api/v1/requests/r1/history", "staff", nil)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
	})

	It("rate limits the login endpoint", func() {
		server.RateLimitPerSec = 0.001
		server.RateLimitBurst = 1
		build()
		body := []byte(`{"email":"a@b.c","password":"x"}`)
		Expect(do(http.MethodPost, "/api/v1/auth/login", "", body).Code).To(Equal(http.StatusOK))

		rec := do(http.MethodPost, "/api/v1/auth/login", "", body)
		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeTooManyRequests)))
	})

	It("authenticates the websocket handshake from the query string", func() {
		build()
		Expect(do(http.MethodGet, "/api/v1/notifications/ws?token=bogus", "", nil).Code).To(Equal(http.StatusUnauthorized))
		// a valid token reaches the upgrader, which refuses a plain GET
		Expect(do(http.MethodGet, "/api/v1/notifications/ws?token=staff", "", nil).Code).To(Equal(http.StatusBadRequest))
	})

	It("exposes prometheus metrics", func() {
		build()
		do(http.MethodGet, "/api/v1/ping", "", nil)
		rec := do(http.MethodGet, "/metrics", "", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("api_requests_total"))
	})

	Context("with the OpenAPI validator", func() {
		BeforeEach(func() {
			doc, err := middleware.LoadOpenAPI(context.Background(), "../../../api/openapi.yml")
			Expect(err).NotTo(HaveOccurred())
			v, err := middleware.NewOpenAPIValidator(transport.NewBaseHandler(logger.Discard()), doc, rest.APIPrefix)
			Expect(err).NotTo(HaveOccurred())
			handlers.Validator = v
		})

		It("rejects malformed query parameters before the handler", func() {
			build()
			rec := do(http.MethodGet, "/api/v1/requests?limit=abc", "staff", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("limit"))

			Expect(do(http.MethodGet, "/api/v1/requests?limit=5", "staff", nil).Code).To(Equal(http.StatusOK))
		})

		It("rejects bodies of the wrong shape", func() {
			build()
			rec := do(http.MethodPost, "/api/v1/requests/r1/assign", "admin", []byte(`{"vehicle_id":42}`))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
