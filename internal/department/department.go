package department

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal"
	departmentDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
)

var (
	ErrDepartmentNotFound = internal.NewNotFoundError("Department not found", internal.ErrCodeDepartmentNotFound)
	ErrBudgetExceeded     = internal.NewValidationFieldError("total_budget", "Requested budget exceeds the department's remaining budget", internal.ErrCodeBudgetExceeded)
)

type Department struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	ParentDepartmentID string    `json:"parent_department_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (d *Department) HasParent() bool {
	return d != nil && d.ParentDepartmentID != ""
}

func (d *Department) ToResponse() DepartmentResponse {
	return DepartmentResponse{
		ID:                 d.ID,
		Code:               d.Code,
		Name:               d.Name,
		ParentDepartmentID: d.ParentDepartmentID,
	}
}

// Budget is a department's allocation for one fiscal year.
type Budget struct {
	DepartmentID   string          `json:"department_id"`
	FiscalYear     int             `json:"fiscal_year"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	TotalUsed      decimal.Decimal `json:"total_used"`
	TotalPending   decimal.Decimal `json:"total_pending"`
}

// Remaining is what is left once used and pending amounts are taken out.
func (b *Budget) Remaining() decimal.Decimal {
	return b.TotalAllocated.Sub(b.TotalUsed).Sub(b.TotalPending)
}

func (b *Budget) CanCover(amount decimal.Decimal) bool {
	return b.Remaining().GreaterThanOrEqual(amount)
}

func FromDataModel(d *departmentDatamodel.Department) *Department {
	dept := &Department{
		ID:        d.ID,
		Code:      d.Code,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
	if d.ParentDepartmentID != nil {
		dept.ParentDepartmentID = *d.ParentDepartmentID
	}
	return dept
}

func BudgetFromDataModel(b *departmentDatamodel.Budget) *Budget {
	return &Budget{
		DepartmentID:   b.DepartmentID,
		FiscalYear:     b.FiscalYear,
		TotalAllocated: b.TotalAllocated,
		TotalUsed:      b.TotalUsed,
		TotalPending:   b.TotalPending,
	}
}
