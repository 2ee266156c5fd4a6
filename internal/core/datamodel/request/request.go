package request

import (
	"time"

	"github.com/shopspring/decimal"
)

// StageSignature is the sign-off a stage leaves on the request. It is
// embedded once per stage with a column prefix.
type StageSignature struct {
	ApprovedAt *time.Time `gorm:"column:approved_at" json:"approved_at"`
	ApprovedBy string     `gorm:"column:approved_by" json:"approved_by"`
	Signature  string     `gorm:"column:signature" json:"signature"`
	Comments   string     `gorm:"column:comments" json:"comments"`
}

func (s StageSignature) Signed() bool { return s.ApprovedAt != nil }

type Request struct {
	ID              string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestNumber   string `gorm:"column:request_number;uniqueIndex;not null" json:"request_number"`
	RequestType     string `gorm:"column:request_type;not null" json:"request_type"`
	Purpose         string `gorm:"column:purpose" json:"purpose"`
	Destination     string `gorm:"column:destination" json:"destination"`
	IsInternational bool   `gorm:"column:is_international" json:"is_international"`

	RequesterID       string `gorm:"column:requester_id;index;not null" json:"requester_id"`
	SubmittedByUserID string `gorm:"column:submitted_by_user_id;not null" json:"submitted_by_user_id"`
	DepartmentID      string `gorm:"column:department_id;index" json:"department_id"`
	RequesterIsHead   bool   `gorm:"column:requester_is_head" json:"requester_is_head"`
	IsRepresentative  bool   `gorm:"column:is_representative" json:"is_representative"`
	HeadIncluded      bool   `gorm:"column:head_included" json:"head_included"`

	HasBudget               bool                `gorm:"column:has_budget" json:"has_budget"`
	TotalBudget             decimal.Decimal     `gorm:"column:total_budget;type:numeric(14,2)" json:"total_budget"`
	ExpenseBreakdown        JSONMap             `gorm:"column:expense_breakdown;type:text" json:"expense_breakdown"`
	ComptrollerEditedBudget decimal.NullDecimal `gorm:"column:comptroller_edited_budget;type:numeric(14,2)" json:"comptroller_edited_budget"`

	NeedsVehicle      bool       `gorm:"column:needs_vehicle" json:"needs_vehicle"`
	NeedsRental       bool       `gorm:"column:needs_rental" json:"needs_rental"`
	VehicleMode       string     `gorm:"column:vehicle_mode;default:none" json:"vehicle_mode"`
	AssignedVehicleID *string    `gorm:"column:assigned_vehicle_id;type:varchar(36)" json:"assigned_vehicle_id"`
	AssignedDriverID  *string    `gorm:"column:assigned_driver_id;type:varchar(36)" json:"assigned_driver_id"`
	PickupLocation    string     `gorm:"column:pickup_location" json:"pickup_location"`
	PickupTime        *time.Time `gorm:"column:pickup_time" json:"pickup_time"`
	TravelStartDate   time.Time  `gorm:"column:travel_start_date;type:date" json:"travel_start_date"`
	TravelEndDate     time.Time  `gorm:"column:travel_end_date;type:date" json:"travel_end_date"`

	Status              string `gorm:"column:status;index;not null" json:"status"`
	CurrentApproverRole string `gorm:"column:current_approver_role" json:"current_approver_role"`
	ExecLevel           string `gorm:"column:exec_level" json:"exec_level"`
	BothVPsApproved     bool   `gorm:"column:both_vps_approved" json:"both_vps_approved"`

	RequesterSignature string     `gorm:"column:requester_signature" json:"requester_signature"`
	RequesterSignedAt  *time.Time `gorm:"column:requester_signed_at" json:"requester_signed_at"`

	Head        StageSignature `gorm:"embedded;embeddedPrefix:head_" json:"head"`
	ParentHead  StageSignature `gorm:"embedded;embeddedPrefix:parent_head_" json:"parent_head"`
	Admin       StageSignature `gorm:"embedded;embeddedPrefix:admin_" json:"admin"`
	Comptroller StageSignature `gorm:"embedded;embeddedPrefix:comptroller_" json:"comptroller"`
	HR          StageSignature `gorm:"embedded;embeddedPrefix:hr_" json:"hr"`
	VP          StageSignature `gorm:"embedded;embeddedPrefix:vp_" json:"vp"`
	VP2         StageSignature `gorm:"embedded;embeddedPrefix:vp2_" json:"vp2"`
	Exec        StageSignature `gorm:"embedded;embeddedPrefix:exec_" json:"exec"`
	President   StageSignature `gorm:"embedded;embeddedPrefix:president_" json:"president"`

	RejectedAt      *time.Time `gorm:"column:rejected_at" json:"rejected_at"`
	RejectedBy      string     `gorm:"column:rejected_by" json:"rejected_by"`
	RejectionReason string     `gorm:"column:rejection_reason" json:"rejection_reason"`
	RejectionStage  string     `gorm:"column:rejection_stage" json:"rejection_stage"`

	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at"`
	CancelledBy        string     `gorm:"column:cancelled_by" json:"cancelled_by"`
	CancellationReason string     `gorm:"column:cancellation_reason" json:"cancellation_reason"`

	ReturnedAt     *time.Time `gorm:"column:returned_at" json:"returned_at"`
	ReturnedBy     string     `gorm:"column:returned_by" json:"returned_by"`
	ReturnReason   string     `gorm:"column:return_reason" json:"return_reason"`
	ReturnComments string     `gorm:"column:return_comments" json:"return_comments"`
	ReturnCount    int        `gorm:"column:return_count;default:0" json:"return_count"`

	FinalApprovedAt *time.Time `gorm:"column:final_approved_at" json:"final_approved_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at"`
	AdminNotes      string     `gorm:"column:admin_notes" json:"admin_notes"`

	WorkflowMetadata JSONMap `gorm:"column:workflow_metadata;type:text" json:"workflow_metadata"`

	Version   int       `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// History is one audit row. Rows are only ever inserted.
type History struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestID      string    `gorm:"column:request_id;index;not null" json:"request_id"`
	Action         string    `gorm:"column:action;not null" json:"action"`
	ActorID        string    `gorm:"column:actor_id" json:"actor_id"`
	ActorRole      string    `gorm:"column:actor_role" json:"actor_role"`
	PreviousStatus string    `gorm:"column:previous_status" json:"previous_status"`
	NewStatus      string    `gorm:"column:new_status;not null" json:"new_status"`
	Comments       string    `gorm:"column:comments" json:"comments"`
	Metadata       JSONMap   `gorm:"column:metadata;type:text" json:"metadata"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (History) TableName() string {
	return "request_history"
}

// Sequence hands out request numbers per type prefix and year.
type Sequence struct {
	Prefix    string `gorm:"primaryKey;column:prefix" json:"prefix"`
	Year      int    `gorm:"primaryKey;column:year" json:"year"`
	LastValue int    `gorm:"column:last_value;not null" json:"last_value"`
}

func (Sequence) TableName() string {
	return "request_sequences"
}
