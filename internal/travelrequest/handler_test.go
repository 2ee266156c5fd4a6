package travelrequest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

type stubService struct {
	err         error
	submitted   travelrequest.SubmitDTO
	rejected    travelrequest.RejectDTO
	lastID      string
	listQuery   travelrequest.ListQuery
	checkedFrom time.Time
}

func (s *stubService) request(id, status string) *travelrequest.Request {
	return &travelrequest.Request{ID: id, RequestNumber: "TO-2025-0001", Status: status}
}

func (s *stubService) Submit(ctx context.Context, actor *rbac.Actor, dto travelrequest.SubmitDTO) (*travelrequest.Request, error) {
	s.submitted = dto
	if s.err != nil {
		return nil, s.err
	}
	return s.request("r1", "pending_head"), nil
}

func (s *stubService) Get(ctx context.Context, id string, actor *rbac.Actor) (*travelrequest.Request, error) {
	s.lastID = id
	if s.err != nil {
		return nil, s.err
	}
	return s.request(id, "pending_head"), nil
}

func (s *stubService) History(ctx context.Context, id string, actor *rbac.Actor) ([]*travelrequest.History, error) {
	return nil, s.err
}

func (s *stubService) Tracking(ctx context.Context, id string, actor *rbac.Actor) (*travelrequest.Tracking, error) {
	return &travelrequest.Tracking{Request: s.request(id, "pending_head"), StatusLabel: "Pending Head Approval"}, s.err
}

func (s *stubService) List(ctx context.Context, actor *rbac.Actor, q travelrequest.ListQuery) ([]*travelrequest.Request, error) {
	s.listQuery = q
	return nil, s.err
}

func (s *stubService) Approve(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.ApproveDTO) (*travelrequest.ApproveResult, error) {
	s.lastID = id
	if s.err != nil {
		return nil, s.err
	}
	return &travelrequest.ApproveResult{Request: s.request(id, "pending_admin"), Message: "Request approved and forwarded to Transportation Management"}, nil
}

func (s *stubService) Reject(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.RejectDTO) (*travelrequest.Request, error) {
	s.rejected = dto
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.request(id, "rejected"), s.err
}

func (s *stubService) Cancel(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.CancelDTO) (*travelrequest.Request, error) {
	return s.request(id, "cancelled"), s.err
}

func (s *stubService) ReturnToSender(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.ReturnDTO) (*travelrequest.Request, error) {
	if err := dto.Validate(10); err != nil {
		return nil, err
	}
	return s.request(id, "pending_requester_signature"), s.err
}

func (s *stubService) Sign(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.SignDTO) (*travelrequest.Request, error) {
	return s.request(id, "pending_head"), s.err
}

func (s *stubService) Complete(ctx context.Context, id string, actor *rbac.Actor) (*travelrequest.Request, error) {
	return s.request(id, "completed"), s.err
}

func (s *stubService) AssignResources(ctx context.Context, id string, actor *rbac.Actor, dto travelrequest.AssignDTO) (*travelrequest.AssignResult, error) {
	return &travelrequest.AssignResult{Request: s.request(id, "pending_admin")}, s.err
}

func (s *stubService) CheckAvailability(ctx context.Context, vehicleID, driverID string, start, end time.Time, excludeRequestID string) (availability.BothResult, error) {
	s.checkedFrom = start
	return availability.BothResult{BothAvailable: true}, s.err
}

var _ = Describe("Handler", func() {
	var (
		stub   *stubService
		router *chi.Mux
		signed *rbac.Actor
	)

	BeforeEach(func() {
		stub = &stubService{}
		h := travelrequest.NewHandler(transport.NewBaseHandler(logger.Discard()), stub)
		signed = &rbac.Actor{ID: "u-head", Caps: rbac.Capabilities(0).With(workflow.RoleRequester, workflow.RoleHead)}

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Test-Anonymous") == "" {
					r = r.WithContext(rbac.WithActor(r.Context(), signed))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/requests", h.Submit)
		router.Get("/requests", h.List)
		router.Get("/requests/{id}", h.Get)
		router.Post("/requests/{id}/approve", h.Approve)
		router.Post("/requests/{id}/reject", h.Reject)
		router.Post("/requests/{id}/return", h.Return)
		router.Get("/availability", h.CheckAvailability)
	})

	do := func(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	It("refuses anonymous callers", func() {
		rec := do(http.MethodGet, "/requests/r1", nil, "X-Test-Anonymous", "1")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("decodes date-only travel dates on submit", func() {
		rec := do(http.MethodPost, "/requests", map[string]interface{}{
			"request_type":      "travel_order",
			"purpose":           "Workshop",
			"destination":       "Davao",
			"head_included":     true,
			"travel_start_date": "2025-04-01",
			"travel_end_date":   "2025-04-03",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(stub.submitted.TravelStartDate.Format("2006-01-02")).To(Equal("2025-04-01"))
	})

	It("reports malformed bodies as validation errors", func() {
		req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("passes the path id through to approve", func() {
		rec := do(http.MethodPost, "/requests/r42/approve", map[string]string{"signature": "sig"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.lastID).To(Equal("r42"))
	})

	It("maps a lost race to 409 and a wrong role to 403", func() {
		stub.err = travelrequest.ErrTerminal
		rec := do(http.MethodPost, "/requests/r1/approve", map[string]string{})
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeTerminalStatus)))

		stub.err = travelrequest.ErrNotApprover
		rec = do(http.MethodPost, "/requests/r1/approve", map[string]string{})
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("returns 400 for a rejection without a reason", func() {
		rec := do(http.MethodPost, "/requests/r1/reject", map[string]string{"reason": ""})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeValidationFailed)))
	})

	It("returns 400 for a short return comment", func() {
		rec := do(http.MethodPost, "/requests/r1/return", map[string]string{"category": "other", "comments": "short"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("reads list paging from the query string", func() {
		rec := do(http.MethodGet, "/requests?scope=inbox&limit=5&offset=10", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.listQuery).To(Equal(travelrequest.ListQuery{Scope: "inbox", Limit: 5, Offset: 10}))

		var body travelrequest.ListResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Requests).To(BeEmpty())
	})

	It("validates the availability query", func() {
		rec := do(http.MethodGet, "/availability?vehicle_id=v1&start=2025-01-15&end=2025-01-10", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodGet, "/availability?start=2025-01-10&end=2025-01-15", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodGet, "/availability?vehicle_id=v1&start=2025-01-10&end=2025-01-15", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.checkedFrom).To(Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))
	})
})
