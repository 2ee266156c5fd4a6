package approval_test

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
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

type stubCoordinator struct {
	err        error
	invitedTTL time.Duration
	kind       approval.InvitationKind
	accepted   *bool
	pendingOf  string
}

func (s *stubCoordinator) Pending(ctx context.Context, approverID string) ([]*approval.Approval, error) {
	s.pendingOf = approverID
	return nil, s.err
}

func (s *stubCoordinator) Invite(ctx context.Context, requestID string, kind approval.InvitationKind, email string, ttl time.Duration) (*approval.Invitation, error) {
	s.invitedTTL = ttl
	s.kind = kind
	if s.err != nil {
		return nil, s.err
	}
	return &approval.Invitation{ID: "inv-1", RequestID: requestID, Kind: string(kind), Email: email, Token: "tok-1", Status: "pending"}, nil
}

func (s *stubCoordinator) Respond(ctx context.Context, token string, accept bool) (*approval.Invitation, error) {
	s.accepted = &accept
	if s.err != nil {
		return nil, s.err
	}
	return &approval.Invitation{ID: "inv-1", Token: token, Status: "confirmed"}, nil
}

func (s *stubCoordinator) InvitationSummary(ctx context.Context, requestID string, kind approval.InvitationKind) (approval.Summary, error) {
	s.kind = kind
	return approval.Summary{Total: 2, Confirmed: 1, Pending: 1}, s.err
}

var _ = Describe("Handler", func() {
	var (
		stub      *stubCoordinator
		router    *chi.Mux
		viewErr   error
		inviteErr error
	)

	BeforeEach(func() {
		stub = &stubCoordinator{}
		viewErr, inviteErr = nil, nil
		canView := func(ctx context.Context, requestID string, actor *rbac.Actor) error { return viewErr }
		canInvite := func(ctx context.Context, requestID string, actor *rbac.Actor) error { return inviteErr }
		h := approval.NewHandler(transport.NewBaseHandler(logger.Discard()), stub, canView, canInvite)
		actor := &rbac.Actor{ID: "u-1", Caps: rbac.Capabilities(0).With(workflow.RoleRequester)}

		router = chi.NewRouter()
		router.Post("/invitations/{token}/respond", h.Respond)
		router.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if req.Header.Get("X-Test-Anonymous") == "" {
						req = req.WithContext(rbac.WithActor(req.Context(), actor))
					}
					next.ServeHTTP(w, req)
				})
			})
			r.Get("/approvals/pending", h.GetPending)
			r.Post("/requests/{id}/invitations", h.Invite)
			r.Get("/requests/{id}/invitations", h.Summary)
		})
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

	It("lists pending approvals for the caller", func() {
		rec := do(http.MethodGet, "/approvals/pending", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.pendingOf).To(Equal("u-1"))
		Expect(rec.Body.String()).To(ContainSubstring(`"approvals":[]`))
	})

	It("refuses anonymous callers", func() {
		rec := do(http.MethodGet, "/approvals/pending", nil, "X-Test-Anonymous", "1")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("creates an invitation with the default lifetime and returns its token once", func() {
		rec := do(http.MethodPost, "/requests/r1/invitations", map[string]string{"kind": "participant", "email": "a@uni.edu"})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(stub.invitedTTL).To(Equal(72 * time.Hour))

		var body approval.InviteResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Token).To(Equal("tok-1"))
		Expect(body.Invitation.RequestID).To(Equal("r1"))
	})

	It("validates the invitation body", func() {
		rec := do(http.MethodPost, "/requests/r1/invitations", map[string]string{"kind": "stranger", "email": "a@uni.edu"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodPost, "/requests/r1/invitations", map[string]interface{}{"kind": "participant", "email": "a@uni.edu", "ttl_hours": 10000})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("hides requests the caller cannot see", func() {
		viewErr = internal.NewNotFoundError("Request not found", internal.ErrCodeRequestNotFound)
		rec := do(http.MethodGet, "/requests/r1/invitations", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("lets only the request's owners invite", func() {
		inviteErr = internal.NewForbiddenError("Only the requester, the submitter or an administrator may do this", internal.ErrCodeNotOwner)
		rec := do(http.MethodPost, "/requests/r1/invitations", map[string]string{"kind": "participant", "email": "a@uni.edu"})
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(stub.invitedTTL).To(BeZero())

		inviteErr = internal.NewConflictError("Request is already final", internal.ErrCodeTerminalStatus)
		rec = do(http.MethodPost, "/requests/r1/invitations", map[string]string{"kind": "participant", "email": "a@uni.edu"})
		Expect(rec.Code).To(Equal(http.StatusConflict))

		viewErr = internal.NewNotFoundError("Request not found", internal.ErrCodeRequestNotFound)
		inviteErr = nil
		rec = do(http.MethodPost, "/requests/r1/invitations", map[string]string{"kind": "participant", "email": "a@uni.edu"})
		Expect(rec.Code).To(Equal(http.StatusCreated))
	})

	It("summarizes participant invitations by default", func() {
		rec := do(http.MethodGet, "/requests/r1/invitations", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.kind).To(Equal(approval.InvitationParticipant))

		var s approval.Summary
		Expect(json.Unmarshal(rec.Body.Bytes(), &s)).To(Succeed())
		Expect(s).To(Equal(approval.Summary{Total: 2, Confirmed: 1, Pending: 1}))
	})

	It("lets an invitee respond without a session", func() {
		rec := do(http.MethodPost, "/invitations/tok-9/respond", map[string]bool{"accept": true})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(*stub.accepted).To(BeTrue())
		Expect(rec.Body.String()).NotTo(ContainSubstring("tok-9"))
	})

	It("maps a lapsed invitation to 409", func() {
		stub.err = approval.ErrInvitationExpired
		rec := do(http.MethodPost, "/invitations/tok-9/respond", map[string]bool{"accept": true})
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})
})
