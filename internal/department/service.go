package department

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	departmentDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*departmentDatamodel.Department, error)
	GetByID(ctx context.Context, id string) (*departmentDatamodel.Department, error)
	GetBudget(ctx context.Context, departmentID string, fiscalYear int) (*departmentDatamodel.Budget, error)
	// ReservePending adds amount to total_pending only if the remainder covers it.
	ReservePending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) (bool, error)
	ReleasePending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error
	CommitPending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context) ([]DepartmentResponse, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list departments", "error", err)
		return nil, err
	}
	out := make([]DepartmentResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row).ToResponse())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Department, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrDepartmentNotFound
	}
	return FromDataModel(row), nil
}

// Parent returns the parent department, or nil for a top-level one.
func (s *Service) Parent(ctx context.Context, id string) (*Department, error) {
	dept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dept.HasParent() {
		return nil, nil
	}
	return s.Get(ctx, dept.ParentDepartmentID)
}

// Budget returns nil when the department has no allocation for the year.
func (s *Service) Budget(ctx context.Context, departmentID string, fiscalYear int) (*Budget, error) {
	row, err := s.repo.GetBudget(ctx, departmentID, fiscalYear)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return BudgetFromDataModel(row), nil
}

// Reserve holds amount against the department's budget. Departments without
// an allocation for the year are not budget-controlled.
func (s *Service) Reserve(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error {
	if !amount.IsPositive() || departmentID == "" {
		return nil
	}
	budget, err := s.Budget(ctx, departmentID, fiscalYear)
	if err != nil {
		return err
	}
	if budget == nil {
		return nil
	}
	ok, err := s.repo.ReservePending(ctx, departmentID, fiscalYear, amount)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.InfoContext(ctx, "department budget exceeded",
			"department_id", departmentID,
			"fiscal_year", fiscalYear,
			"requested", amount.String(),
			"remaining", budget.Remaining().String())
		return ErrBudgetExceeded
	}
	return nil
}

// Release returns a reservation, on rejection or cancellation.
func (s *Service) Release(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error {
	if !amount.IsPositive() || departmentID == "" {
		return nil
	}
	return s.repo.ReleasePending(ctx, departmentID, fiscalYear, amount)
}

// Commit moves a reservation to used, on final approval.
func (s *Service) Commit(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error {
	if !amount.IsPositive() || departmentID == "" {
		return nil
	}
	return s.repo.CommitPending(ctx, departmentID, fiscalYear, amount)
}
