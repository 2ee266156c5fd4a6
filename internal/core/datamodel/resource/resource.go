package resource

import "time"

type Vehicle struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	PlateNumber string    `gorm:"column:plate_number;uniqueIndex;not null"`
	Name        string    `gorm:"column:name;not null"`
	Status      string    `gorm:"column:status;not null;default:available"`
	CodingDay   *int      `gorm:"column:coding_day"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Driver struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	Name          string    `gorm:"column:name;not null"`
	LicenseNumber string    `gorm:"column:license_number"`
	Status        string    `gorm:"column:status;not null;default:available"`
	CodingDay     *int      `gorm:"column:coding_day"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
