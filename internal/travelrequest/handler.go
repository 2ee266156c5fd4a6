package travelrequest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
)

type ServiceAPI interface {
	Submit(ctx context.Context, actor *rbac.Actor, dto SubmitDTO) (*Request, error)
	Get(ctx context.Context, id string, actor *rbac.Actor) (*Request, error)
	History(ctx context.Context, id string, actor *rbac.Actor) ([]*History, error)
	Tracking(ctx context.Context, id string, actor *rbac.Actor) (*Tracking, error)
	List(ctx context.Context, actor *rbac.Actor, q ListQuery) ([]*Request, error)
	Approve(ctx context.Context, id string, actor *rbac.Actor, dto ApproveDTO) (*ApproveResult, error)
	Reject(ctx context.Context, id string, actor *rbac.Actor, dto RejectDTO) (*Request, error)
	Cancel(ctx context.Context, id string, actor *rbac.Actor, dto CancelDTO) (*Request, error)
	ReturnToSender(ctx context.Context, id string, actor *rbac.Actor, dto ReturnDTO) (*Request, error)
	Sign(ctx context.Context, id string, actor *rbac.Actor, dto SignDTO) (*Request, error)
	Complete(ctx context.Context, id string, actor *rbac.Actor) (*Request, error)
	AssignResources(ctx context.Context, id string, actor *rbac.Actor, dto AssignDTO) (*AssignResult, error)
	CheckAvailability(ctx context.Context, vehicleID, driverID string, start, end time.Time, excludeRequestID string) (availability.BothResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

type ListResponse struct {
	Requests []*Request `json:"requests"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

type HistoryResponse struct {
	History []*History `json:"history"`
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*rbac.Actor, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteAppError(w, r, ErrUnauthenticated)
		return nil, false
	}
	return actor, true
}

// Submit handles POST /requests
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto SubmitDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	req, err := h.Service.Submit(r.Context(), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, req)
}

// List handles GET /requests?scope=mine|inbox|all&status=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	q := ListQuery{
		Scope:  query.Get("scope"),
		Status: query.Get("status"),
		Limit:  20,
	}
	if raw := query.Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 && l <= 100 {
			q.Limit = l
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if o, err := strconv.Atoi(raw); err == nil && o >= 0 {
			q.Offset = o
		}
	}

	rows, err := h.Service.List(r.Context(), actor, q)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*Request{}
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Requests: rows, Limit: q.Limit, Offset: q.Offset})
}

// Get handles GET /requests/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// History handles GET /requests/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.History(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*History{}
	}
	h.WriteJSON(w, http.StatusOK, HistoryResponse{History: rows})
}

// Tracking handles GET /requests/{id}/tracking
func (h *Handler) Tracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	t, err := h.Service.Tracking(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

// Approve handles POST /requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto ApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	res, err := h.Service.Approve(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, res)
}

// Reject handles POST /requests/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto RejectDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	req, err := h.Service.Reject(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Cancel handles POST /requests/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto CancelDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	req, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Return handles POST /requests/{id}/return
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto ReturnDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	req, err := h.Service.ReturnToSender(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Sign handles POST /requests/{id}/sign
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto SignDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	req, err := h.Service.Sign(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Complete handles POST /requests/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Complete(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Assign handles POST /requests/{id}/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto AssignDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	res, err := h.Service.AssignResources(r.Context(), chi.URLParam(r, "id"), actor, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, res)
}

// CheckAvailability handles
// GET /availability?vehicle_id=&driver_id=&start=2025-01-10&end=2025-01-12&exclude=
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	query := r.URL.Query()
	vehicleID, driverID := query.Get("vehicle_id"), query.Get("driver_id")
	if vehicleID == "" && driverID == "" {
		h.WriteAppError(w, r, internal.NewValidationFieldError("vehicle_id", "A vehicle or a driver is required", internal.ErrCodeValidationFailed))
		return
	}
	start, err := time.Parse("2006-01-02", query.Get("start"))
	if err != nil {
		h.WriteAppError(w, r, internal.NewValidationFieldError("start", "start must be a date (YYYY-MM-DD)", internal.ErrCodeValidationFailed))
		return
	}
	end, err := time.Parse("2006-01-02", query.Get("end"))
	if err != nil {
		h.WriteAppError(w, r, internal.NewValidationFieldError("end", "end must be a date (YYYY-MM-DD)", internal.ErrCodeValidationFailed))
		return
	}
	if end.Before(start) {
		h.WriteAppError(w, r, internal.NewValidationFieldError("end", "end cannot be before start", internal.ErrCodeInvalidDateRange))
		return
	}

	res, err := h.Service.CheckAvailability(r.Context(), vehicleID, driverID, start, end, query.Get("exclude"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, res)
}
