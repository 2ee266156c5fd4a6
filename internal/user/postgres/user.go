package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	userDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/travel-approval/internal/store"
	"github.com/frahmantamala/travel-approval/internal/user"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) first(ctx context.Context, op string, query string, args ...interface{}) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := store.GetDB(ctx, r.db).Where(query, args...).First(&u).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable(op, err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	return r.first(ctx, "get user", "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.first(ctx, "get user by email", "LOWER(email) = LOWER(?)", email)
}

func (r *UserRepository) GetAdmin(ctx context.Context, userID string) (*userDatamodel.Admin, error) {
	var a userDatamodel.Admin
	err := store.GetDB(ctx, r.db).Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("get admin", err)
	}
	return &a, nil
}

func (r *UserRepository) ListHeads(ctx context.Context, departmentID string) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := store.GetDB(ctx, r.db).
		Where("department_id = ? AND is_head = ? AND status = ?", departmentID, true, user.StatusActive).
		Order("name ASC").
		Find(&users).Error
	return users, store.Unavailable("list heads", err)
}

func roleCondition(role workflow.Role) (string, []interface{}, error) {
	switch role {
	case workflow.RoleHead:
		return "is_head = ?", []interface{}{true}, nil
	case workflow.RoleAdmin:
		return "(is_admin = ? OR role = ?)", []interface{}{true, "admin"}, nil
	case workflow.RoleComptroller:
		return "(is_comptroller = ? OR role = ?)", []interface{}{true, "comptroller"}, nil
	case workflow.RoleHR:
		return "(is_hr = ? OR role = ?)", []interface{}{true, "hr"}, nil
	case workflow.RoleVP:
		return "(is_vp = ? OR exec_type = ?)", []interface{}{true, string(workflow.ExecTypeVP)}, nil
	case workflow.RolePresident:
		return "(is_president = ? OR exec_type = ?)", []interface{}{true, string(workflow.ExecTypePresident)}, nil
	case workflow.RoleExec:
		return "(is_exec = ? OR is_vp = ? OR is_president = ?)", []interface{}{true, true, true}, nil
	}
	return "", nil, fmt.Errorf("no approver pool for role %q", role)
}

func (r *UserRepository) ListByRole(ctx context.Context, role workflow.Role) ([]*userDatamodel.User, error) {
	cond, args, err := roleCondition(role)
	if err != nil {
		return nil, err
	}
	var users []*userDatamodel.User
	err = store.GetDB(ctx, r.db).
		Where(cond, args...).
		Where("status = ?", user.StatusActive).
		Order("name ASC").
		Find(&users).Error
	return users, store.Unavailable("list approvers", err)
}
