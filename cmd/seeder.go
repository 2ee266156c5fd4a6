package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	approvalDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/approval"
	departmentDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
	notificationDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/notification"
	requestDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	resourceDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/resource"
	userDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample departments, approvers, vehicles and drivers for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			if err := clearSeedData(gdb); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		if err := gdb.Transaction(func(tx *gorm.DB) error {
			return seed(tx, cfg.Security.BCryptCost)
		}); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}
		fmt.Println("Seed data loaded; every seeded user logs in with password \"password\"")
	},
}

// clearSeedData empties tables children first.
func clearSeedData(db *gorm.DB) error {
	models := []interface{}{
		&notificationDatamodel.Notification{},
		&approvalDatamodel.Invitation{},
		&approvalDatamodel.Approval{},
		&requestDatamodel.History{},
		&requestDatamodel.Request{},
		&requestDatamodel.Sequence{},
		&resourceDatamodel.Vehicle{},
		&resourceDatamodel.Driver{},
		&userDatamodel.Admin{},
		&userDatamodel.User{},
		&departmentDatamodel.Budget{},
		&departmentDatamodel.Department{},
	}
	for _, m := range models {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

type seedUser struct {
	email, name, position string
	department            *string
	apply                 func(u *userDatamodel.User)
}

func seed(db *gorm.DB, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), cost)
	if err != nil {
		return err
	}
	upsert := db.Clauses(clause.OnConflict{DoNothing: true})

	college := &departmentDatamodel.Department{ID: uuid.NewString(), Code: "CCS", Name: "College of Computer Studies"}
	if err := upsert.Create(college).Error; err != nil {
		return fmt.Errorf("department %s: %w", college.Code, err)
	}
	if err := db.Where("code = ?", college.Code).First(college).Error; err != nil {
		return err
	}
	dept := &departmentDatamodel.Department{ID: uuid.NewString(), Code: "CCS-IT", Name: "Information Technology", ParentDepartmentID: &college.ID}
	if err := upsert.Create(dept).Error; err != nil {
		return fmt.Errorf("department %s: %w", dept.Code, err)
	}
	if err := db.Where("code = ?", dept.Code).First(dept).Error; err != nil {
		return err
	}

	budget := &departmentDatamodel.Budget{
		ID:             uuid.NewString(),
		DepartmentID:   dept.ID,
		FiscalYear:     time.Now().Year(),
		TotalAllocated: decimal.NewFromInt(250000),
	}
	if err := upsert.Create(budget).Error; err != nil {
		return fmt.Errorf("budget: %w", err)
	}

	users := []seedUser{
		{"faculty@univ.edu", "Faculty Member", "Instructor", &dept.ID, func(u *userDatamodel.User) {}},
		{"head@univ.edu", "Department Head", "Chair", &dept.ID, func(u *userDatamodel.User) { u.IsHead = true }},
		{"dean@univ.edu", "College Dean", "Dean", &college.ID, func(u *userDatamodel.User) { u.IsHead = true }},
		{"transport@univ.edu", "Transport Admin", "Transportation Officer", nil, func(u *userDatamodel.User) { u.IsAdmin = true }},
		{"comptroller@univ.edu", "Comptroller", "Comptroller", nil, func(u *userDatamodel.User) { u.IsComptroller = true }},
		{"hr@univ.edu", "HR Officer", "HR Director", nil, func(u *userDatamodel.User) { u.IsHR = true }},
		{"vp@univ.edu", "Vice President", "VP Academic Affairs", nil, func(u *userDatamodel.User) {
			u.IsExec, u.IsVP, u.ExecType = true, true, string(workflow.ExecTypeVP)
		}},
		{"president@univ.edu", "University President", "President", nil, func(u *userDatamodel.User) {
			u.IsExec, u.IsPresident, u.ExecType = true, true, string(workflow.ExecTypePresident)
		}},
	}
	for _, su := range users {
		u := &userDatamodel.User{
			ID:           uuid.NewString(),
			Email:        su.email,
			Name:         su.name,
			PasswordHash: string(hash),
			DepartmentID: su.department,
			Position:     su.position,
			Role:         "faculty",
			Status:       "active",
		}
		su.apply(u)
		if err := upsert.Create(u).Error; err != nil {
			return fmt.Errorf("user %s: %w", su.email, err)
		}
		if u.IsAdmin {
			if err := db.Where("email = ?", u.Email).First(u).Error; err != nil {
				return err
			}
			if err := upsert.Create(&userDatamodel.Admin{UserID: u.ID, SuperAdmin: true}).Error; err != nil {
				return fmt.Errorf("admin %s: %w", su.email, err)
			}
		}
		fmt.Println("Seeded user:", su.email)
	}

	codingDay := int(time.Monday)
	if err := upsert.Create(&resourceDatamodel.Vehicle{ID: uuid.NewString(), PlateNumber: "SAA-1234", Name: "Toyota Hiace", Status: "available", CodingDay: &codingDay}).Error; err != nil {
		return fmt.Errorf("vehicle: %w", err)
	}
	var drivers int64
	if err := db.Model(&resourceDatamodel.Driver{}).Where("license_number = ?", "N01-23-456789").Count(&drivers).Error; err != nil {
		return err
	}
	if drivers == 0 {
		if err := db.Create(&resourceDatamodel.Driver{ID: uuid.NewString(), Name: "Juan Dela Cruz", LicenseNumber: "N01-23-456789", Status: "available"}).Error; err != nil {
			return fmt.Errorf("driver: %w", err)
		}
	}
	return nil
}
