package department

type DepartmentResponse struct {
	ID                 string `json:"id"`
	Code               string `json:"code"`
	Name               string `json:"name"`
	ParentDepartmentID string `json:"parent_department_id,omitempty"`
}

type DepartmentsResponse struct {
	Departments []DepartmentResponse `json:"departments"`
}

type BudgetResponse struct {
	DepartmentID   string `json:"department_id"`
	FiscalYear     int    `json:"fiscal_year"`
	TotalAllocated string `json:"total_allocated"`
	TotalUsed      string `json:"total_used"`
	TotalPending   string `json:"total_pending"`
	Remaining      string `json:"remaining"`
}

func (b *Budget) ToResponse() BudgetResponse {
	return BudgetResponse{
		DepartmentID:   b.DepartmentID,
		FiscalYear:     b.FiscalYear,
		TotalAllocated: b.TotalAllocated.StringFixed(2),
		TotalUsed:      b.TotalUsed.StringFixed(2),
		TotalPending:   b.TotalPending.StringFixed(2),
		Remaining:      b.Remaining().StringFixed(2),
	}
}
