package approval

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
)

const (
	defaultInvitationTTL = 72 * time.Hour
	maxInvitationTTL     = 30 * 24 * time.Hour
)

type ServiceAPI interface {
	Pending(ctx context.Context, approverID string) ([]*Approval, error)
	Invite(ctx context.Context, requestID string, kind InvitationKind, email string, ttl time.Duration) (*Invitation, error)
	Respond(ctx context.Context, token string, accept bool) (*Invitation, error)
	InvitationSummary(ctx context.Context, requestID string, kind InvitationKind) (Summary, error)
}

// AccessCheck reports whether actor may do something with the request. It
// keeps this package free of the request service.
type AccessCheck func(ctx context.Context, requestID string, actor *rbac.Actor) error

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	// CanView guards the invitation summary; CanInvite guards new
	// invitations, which only the request's owners may send while it is open.
	CanView   AccessCheck
	CanInvite AccessCheck
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, canView, canInvite AccessCheck) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: svc, CanView: canView, CanInvite: canInvite}
}

type InviteDTO struct {
	Kind     string `json:"kind"`
	Email    string `json:"email"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

func (dto InviteDTO) Validate() error {
	switch InvitationKind(dto.Kind) {
	case InvitationParticipant, InvitationRequester, InvitationHeadEndorsement:
	default:
		return internal.NewValidationFieldError("kind", "kind must be participant, requester or head_endorsement", internal.ErrCodeValidationFailed)
	}
	if dto.Email == "" {
		return internal.NewValidationFieldError("email", "Invitation e-mail is required", internal.ErrCodeValidationFailed)
	}
	if dto.TTLHours < 0 || time.Duration(dto.TTLHours)*time.Hour > maxInvitationTTL {
		return internal.NewValidationFieldError("ttl_hours", "ttl_hours must be between 1 and 720", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (dto InviteDTO) TTL() time.Duration {
	if dto.TTLHours == 0 {
		return defaultInvitationTTL
	}
	return time.Duration(dto.TTLHours) * time.Hour
}

type RespondDTO struct {
	Accept bool `json:"accept"`
}

// InviteResponse carries the token once, for the link sent to the invitee.
type InviteResponse struct {
	Invitation *Invitation `json:"invitation"`
	Token      string      `json:"token"`
}

type PendingResponse struct {
	Approvals []*Approval `json:"approvals"`
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*rbac.Actor, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken))
		return nil, false
	}
	return actor, true
}

// GetPending handles GET /approvals/pending
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.Pending(r.Context(), actor.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*Approval{}
	}
	h.WriteJSON(w, http.StatusOK, PendingResponse{Approvals: rows})
}

// Invite handles POST /requests/{id}/invitations
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "id")
	if err := h.CanInvite(r.Context(), requestID, actor); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto InviteDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	inv, err := h.Service.Invite(r.Context(), requestID, InvitationKind(dto.Kind), dto.Email, dto.TTL())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.Logger.Info("invitation created", "request_id", requestID, "kind", dto.Kind, "invited_by", actor.ID)
	h.WriteJSON(w, http.StatusCreated, InviteResponse{Invitation: inv, Token: inv.Token})
}

// Summary handles GET /requests/{id}/invitations?kind=participant
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "id")
	if err := h.CanView(r.Context(), requestID, actor); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(InvitationParticipant)
	}
	s, err := h.Service.InvitationSummary(r.Context(), requestID, InvitationKind(kind))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, s)
}

// Respond handles POST /invitations/{token}/respond. The token is the credential.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var dto RespondDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	inv, err := h.Service.Respond(r.Context(), chi.URLParam(r, "token"), dto.Accept)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, inv)
}
