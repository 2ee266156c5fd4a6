package user

import "time"

type User struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	Email         string    `gorm:"column:email;uniqueIndex;not null"`
	Name          string    `gorm:"column:name;not null"`
	PasswordHash  string    `gorm:"column:password_hash;not null"`
	DepartmentID  *string   `gorm:"column:department_id;type:varchar(36);index"`
	Position      string    `gorm:"column:position"`
	Role          string    `gorm:"column:role;not null;default:faculty"`
	Status        string    `gorm:"column:status;not null;default:active"`
	IsHead        bool      `gorm:"column:is_head"`
	IsAdmin       bool      `gorm:"column:is_admin"`
	IsComptroller bool      `gorm:"column:is_comptroller"`
	IsHR          bool      `gorm:"column:is_hr"`
	IsExec        bool      `gorm:"column:is_exec"`
	IsVP          bool      `gorm:"column:is_vp"`
	IsPresident   bool      `gorm:"column:is_president"`
	ExecType      string    `gorm:"column:exec_type"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Admin struct {
	UserID     string    `gorm:"primaryKey;column:user_id;type:varchar(36)"`
	SuperAdmin bool      `gorm:"column:super_admin"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
