package department

import (
	"time"

	"github.com/shopspring/decimal"
)

type Department struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)"`
	Code               string    `gorm:"column:code;uniqueIndex;not null"`
	Name               string    `gorm:"column:name;not null"`
	ParentDepartmentID *string   `gorm:"column:parent_department_id;type:varchar(36)"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Budget struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)"`
	DepartmentID   string          `gorm:"column:department_id;not null;uniqueIndex:idx_department_year"`
	FiscalYear     int             `gorm:"column:fiscal_year;not null;uniqueIndex:idx_department_year"`
	TotalAllocated decimal.Decimal `gorm:"column:total_allocated;type:numeric(14,2)"`
	TotalUsed      decimal.Decimal `gorm:"column:total_used;type:numeric(14,2)"`
	TotalPending   decimal.Decimal `gorm:"column:total_pending;type:numeric(14,2)"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Budget) TableName() string {
	return "department_budgets"
}
