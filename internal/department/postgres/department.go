package postgres

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	departmentDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
	"github.com/frahmantamala/travel-approval/internal/department"
	"github.com/frahmantamala/travel-approval/internal/store"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) department.RepositoryAPI {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) GetAll(ctx context.Context) ([]*departmentDatamodel.Department, error) {
	var departments []*departmentDatamodel.Department
	err := store.GetDB(ctx, r.db).Order("name ASC").Find(&departments).Error
	return departments, store.Unavailable("list departments", err)
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*departmentDatamodel.Department, error) {
	var dept departmentDatamodel.Department
	err := store.GetDB(ctx, r.db).Where("id = ?", id).First(&dept).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("get department", err)
	}
	return &dept, nil
}

func (r *DepartmentRepository) GetBudget(ctx context.Context, departmentID string, fiscalYear int) (*departmentDatamodel.Budget, error) {
	var budget departmentDatamodel.Budget
	err := store.GetDB(ctx, r.db).
		Where("department_id = ? AND fiscal_year = ?", departmentID, fiscalYear).
		First(&budget).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("get department budget", err)
	}
	return &budget, nil
}

func (r *DepartmentRepository) ReservePending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) (bool, error) {
	res := store.GetDB(ctx, r.db).
		Model(&departmentDatamodel.Budget{}).
		Where("department_id = ? AND fiscal_year = ?", departmentID, fiscalYear).
		Where("total_allocated - total_used - total_pending - ? >= 0", amount).
		Update("total_pending", gorm.Expr("total_pending + ?", amount))
	if res.Error != nil {
		return false, store.Unavailable("reserve department budget", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *DepartmentRepository) ReleasePending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error {
	err := store.GetDB(ctx, r.db).
		Model(&departmentDatamodel.Budget{}).
		Where("department_id = ? AND fiscal_year = ?", departmentID, fiscalYear).
		Update("total_pending", gorm.Expr("total_pending - ?", amount)).Error
	return store.Unavailable("release department budget", err)
}

func (r *DepartmentRepository) CommitPending(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error {
	err := store.GetDB(ctx, r.db).
		Model(&departmentDatamodel.Budget{}).
		Where("department_id = ? AND fiscal_year = ?", departmentID, fiscalYear).
		Updates(map[string]interface{}{
			"total_pending": gorm.Expr("total_pending - ?", amount),
			"total_used":    gorm.Expr("total_used + ?", amount),
		}).Error
	return store.Unavailable("commit department budget", err)
}
