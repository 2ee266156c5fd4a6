package travelrequest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/core/common/validation"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Date accepts "2006-01-02" as well as RFC 3339 timestamps.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

type SubmitDTO struct {
	RequestType     string `json:"request_type"`
	Purpose         string `json:"purpose"`
	Destination     string `json:"destination"`
	IsInternational bool   `json:"is_international"`
	// RequesterID is set when someone files on another user's behalf.
	RequesterID              string                 `json:"requester_id,omitempty"`
	HeadIncluded             bool                   `json:"head_included"`
	ParticipantDepartmentIDs []string               `json:"participant_department_ids,omitempty"`
	HasBudget                bool                   `json:"has_budget"`
	TotalBudget              decimal.Decimal        `json:"total_budget"`
	ExpenseBreakdown         map[string]interface{} `json:"expense_breakdown,omitempty"`
	NeedsVehicle             bool                   `json:"needs_vehicle"`
	NeedsRental              bool                   `json:"needs_rental"`
	VehicleMode              string                 `json:"vehicle_mode,omitempty"`
	PickupLocation           string                 `json:"pickup_location,omitempty"`
	PickupTime               *time.Time             `json:"pickup_time,omitempty"`
	TravelStartDate          Date                   `json:"travel_start_date"`
	TravelEndDate            Date                   `json:"travel_end_date"`
	Signature                string                 `json:"signature,omitempty"`
	NextApproverID           string                 `json:"next_approver_id,omitempty"`
}

func (dto SubmitDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("request_type", dto.RequestType).
		Required().
		OneOf(internal.ErrCodeValidationFailed, string(TypeTravelOrder), string(TypeSeminar))
	v.Field("purpose", dto.Purpose).Required().MaxLength(1000)
	v.Field("destination", dto.Destination).Required().MaxLength(500)
	v.Field("total_budget", dto.TotalBudget).NonNegative()
	v.Field("travel_start_date", dto.TravelStartDate.Time).Required()
	v.Field("travel_end_date", dto.TravelEndDate.Time).
		Required().
		NotBefore(dto.TravelStartDate.Time, "travel_start_date")
	if dto.VehicleMode != "" {
		v.Field("vehicle_mode", dto.VehicleMode).OneOf(internal.ErrCodeValidationFailed,
			VehicleModeNone, VehicleModeInstitutional, VehicleModeRental, VehicleModeOwned)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ApproveDTO struct {
	Comments  string `json:"comments,omitempty"`
	Signature string `json:"signature,omitempty"`
	// NextApproverID pins the next stage to one user.
	NextApproverID string `json:"next_approver_id,omitempty"`
	// EditedBudget lets the comptroller correct the requested amount.
	EditedBudget *decimal.Decimal `json:"edited_budget,omitempty"`
}

func (dto ApproveDTO) Validate() error {
	if dto.EditedBudget != nil && dto.EditedBudget.IsNegative() {
		return internal.NewValidationFieldError("edited_budget", "edited_budget cannot be negative", internal.ErrCodeValidationFailed)
	}
	return nil
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

func (dto RejectDTO) Validate() error {
	if err := validation.ValidateReason("reason", dto.Reason); err != nil {
		return err
	}
	return nil
}

type CancelDTO struct {
	Reason string `json:"reason"`
	// Password is required when an administrator cancels someone else's request.
	Password string `json:"password,omitempty"`
}

func (dto CancelDTO) Validate() error {
	if err := validation.ValidateReason("reason", dto.Reason); err != nil {
		return err
	}
	return nil
}

type ReturnDTO struct {
	Category string `json:"category"`
	Comments string `json:"comments"`
	Target   string `json:"target,omitempty"`
}

func (dto ReturnDTO) Validate(minComment int) error {
	if !workflow.ReturnCategory(dto.Category).IsValid() {
		return ErrInvalidCategory
	}
	if err := validation.ValidateReturnComment(dto.Comments, minComment); err != nil {
		return err
	}
	return nil
}

type SignDTO struct {
	Signature string `json:"signature"`
}

func (dto SignDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("signature", dto.Signature).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type AssignDTO struct {
	VehicleID      string     `json:"vehicle_id,omitempty"`
	DriverID       string     `json:"driver_id,omitempty"`
	PickupLocation string     `json:"pickup_location,omitempty"`
	PickupTime     *time.Time `json:"pickup_time,omitempty"`
}

func (dto AssignDTO) Validate() error {
	if dto.VehicleID == "" && dto.DriverID == "" {
		return internal.NewValidationFieldError("vehicle_id", "A vehicle or a driver is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// ListQuery selects which requests a listing shows: the caller's own
// ("mine"), those waiting on the caller ("inbox"), or everything ("all",
// approvers only).
type ListQuery struct {
	Scope  string
	Status string
	Limit  int
	Offset int
}

const (
	ScopeMine  = "mine"
	ScopeInbox = "inbox"
	ScopeAll   = "all"
)

type ApproveResult struct {
	Request *Request `json:"request"`
	Message string   `json:"message"`
	// Summary is set when the stage is shared between several approvers.
	Summary *approval.Summary `json:"summary,omitempty"`
}

type AssignResult struct {
	Request      *Request                `json:"request"`
	Availability availability.BothResult `json:"availability"`
}

// Tracking is the timeline view of one request.
type Tracking struct {
	Request     *Request        `json:"request"`
	StatusLabel string          `json:"status_label"`
	Progress    int             `json:"progress"`
	Steps       []workflow.Step `json:"steps"`
	History     []*History      `json:"history"`
	ReturnTo    []string        `json:"return_targets,omitempty"`
}
