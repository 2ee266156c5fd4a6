package notification

import "time"

type Notification struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)"`
	UserID           string     `gorm:"column:user_id;index;not null"`
	Type             string     `gorm:"column:type;not null"`
	Title            string     `gorm:"column:title;not null"`
	Message          string     `gorm:"column:message"`
	RelatedRequestID string     `gorm:"column:related_request_id"`
	ReadAt           *time.Time `gorm:"column:read_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}
