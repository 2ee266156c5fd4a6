package department

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]DepartmentResponse, error)
	Get(ctx context.Context, id string) (*Department, error)
	Budget(ctx context.Context, departmentID string, fiscalYear int) (*Budget, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DepartmentsResponse{Departments: departments})
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year := time.Now().Year()
	if raw := r.URL.Query().Get("fiscal_year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteAppError(w, r, internal.NewValidationFieldError("fiscal_year", "fiscal_year must be a number", internal.ErrCodeValidationFailed))
			return
		}
		year = y
	}

	if _, err := h.Service.Get(r.Context(), id); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	budget, err := h.Service.Budget(r.Context(), id, year)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if budget == nil {
		h.WriteAppError(w, r, internal.NewNotFoundError("No budget allocated for this fiscal year", internal.ErrCodeDepartmentNotFound))
		return
	}
	h.WriteJSON(w, http.StatusOK, budget.ToResponse())
}
