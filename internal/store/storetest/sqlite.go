// Package storetest opens throwaway SQLite databases carrying the full schema.
package storetest

import (
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/travel-approval/internal/core/datamodel/approval"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/notification"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/resource"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
)

// Models lists every table the services touch.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.Admin{},
		&department.Department{},
		&department.Budget{},
		&request.Request{},
		&request.History{},
		&request.Sequence{},
		&approval.Approval{},
		&approval.Invitation{},
		&resource.Vehicle{},
		&resource.Driver{},
		&notification.Notification{},
	}
}

// Open returns an in-memory database pinned to one connection, so every
// query sees the same memory database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLX wraps the same connection for sqlx based read models.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
