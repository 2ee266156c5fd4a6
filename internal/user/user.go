package user

import (
	"time"

	"github.com/frahmantamala/travel-approval/internal"
	userDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	DepartmentID  string    `json:"department_id,omitempty"`
	Position      string    `json:"position,omitempty"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	IsHead        bool      `json:"is_head"`
	IsAdmin       bool      `json:"is_admin"`
	IsComptroller bool      `json:"is_comptroller"`
	IsHR          bool      `json:"is_hr"`
	IsExec        bool      `json:"is_exec"`
	IsVP          bool      `json:"is_vp"`
	IsPresident   bool      `json:"is_president"`
	ExecType      string    `json:"exec_type,omitempty"`
	SuperAdmin    bool      `json:"super_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var ErrNotFound = internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)

func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == StatusActive
}

func (u *User) Flags() rbac.Flags {
	return rbac.Flags{
		Role:          u.Role,
		IsHead:        u.IsHead,
		IsAdmin:       u.IsAdmin,
		IsComptroller: u.IsComptroller,
		IsHR:          u.IsHR,
		IsExec:        u.IsExec,
		IsVP:          u.IsVP,
		IsPresident:   u.IsPresident,
		SuperAdmin:    u.SuperAdmin,
		ExecType:      workflow.ExecType(u.ExecType),
	}
}

func FromDataModel(u *userDatamodel.User, admin *userDatamodel.Admin) *User {
	out := &User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		Position:      u.Position,
		Role:          u.Role,
		Status:        u.Status,
		IsHead:        u.IsHead,
		IsAdmin:       u.IsAdmin,
		IsComptroller: u.IsComptroller,
		IsHR:          u.IsHR,
		IsExec:        u.IsExec,
		IsVP:          u.IsVP,
		IsPresident:   u.IsPresident,
		ExecType:      u.ExecType,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.DepartmentID != nil {
		out.DepartmentID = *u.DepartmentID
	}
	if admin != nil {
		out.SuperAdmin = admin.SuperAdmin
	}
	return out
}

// ProfileResponse is the signed-in user's own view.
type ProfileResponse struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	DepartmentID string          `json:"department_id,omitempty"`
	Position     string          `json:"position,omitempty"`
	Roles        []workflow.Role `json:"roles"`
	SuperAdmin   bool            `json:"super_admin"`
}
