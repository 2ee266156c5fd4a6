package approval

import "time"

type Approval struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestID  string     `gorm:"column:request_id;index;not null" json:"request_id"`
	Step       string     `gorm:"column:step;not null" json:"step"`
	ApproverID string     `gorm:"column:approver_id;not null" json:"approver_id"`
	Policy     string     `gorm:"column:policy;not null" json:"policy"`
	Action     string     `gorm:"column:action;not null;default:pending" json:"action"`
	Signature  string     `gorm:"column:signature" json:"signature"`
	Reason     string     `gorm:"column:reason" json:"reason"`
	ActedAt    *time.Time `gorm:"column:acted_at" json:"acted_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

type Invitation struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestID   string     `gorm:"column:request_id;index;not null" json:"request_id"`
	Kind        string     `gorm:"column:kind;not null" json:"kind"`
	Email       string     `gorm:"column:email;not null" json:"email"`
	Token       string     `gorm:"column:token;uniqueIndex;not null" json:"-"`
	Status      string     `gorm:"column:status;not null;default:pending" json:"status"`
	ExpiresAt   time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RespondedAt *time.Time `gorm:"column:responded_at" json:"responded_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
