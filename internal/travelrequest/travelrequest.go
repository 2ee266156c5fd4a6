package travelrequest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal"
	requestDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

type (
	Request        = requestDatamodel.Request
	History        = requestDatamodel.History
	StageSignature = requestDatamodel.StageSignature
	JSONMap        = requestDatamodel.JSONMap
)

type RequestType string

const (
	TypeTravelOrder RequestType = "travel_order"
	TypeSeminar     RequestType = "seminar"
)

// NumberPrefix is the request number prefix, TO-2025-0001 or SEM-2025-0001.
func (t RequestType) NumberPrefix() string {
	if t == TypeSeminar {
		return "SEM"
	}
	return "TO"
}

const (
	VehicleModeNone          = "none"
	VehicleModeInstitutional = "institutional"
	VehicleModeRental        = "rental"
	VehicleModeOwned         = "owned"
)

// History actions.
const (
	ActionSigned    = "signed"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionReturned  = "returned"
	ActionCancelled = "cancelled"
	ActionCompleted = "completed"
)

// workflow_metadata keys.
const (
	MetaNextApproverID   = "next_approver_id"
	MetaNextApproverRole = "next_approver_role"
	MetaNextPresidentID  = "next_president_id"
	MetaParticipantDepts = "participant_department_ids"
	MetaDelegatedStage   = "delegated_stage"
)

// Admin triage notes left when a fan-in stage has nobody to route to.
const (
	NoteNoDepartmentHead       = "NO_DEPARTMENT_HEAD - requires admin triage"
	NoteNoParentDepartmentHead = "NO_PARENT_DEPARTMENT_HEAD - requires admin triage"
	// NoteNoStageApprover takes the upper-cased role of a stage only the
	// requester could sign.
	NoteNoStageApprover = "NO_%s_APPROVER - delegated to super admin"
)

var (
	ErrRequestNotFound     = internal.NewNotFoundError("Request not found", internal.ErrCodeRequestNotFound)
	ErrNotApprover         = internal.NewForbiddenError("You are not allowed to act on this request at its current stage", internal.ErrCodeNotApprover)
	ErrNotOwner            = internal.NewForbiddenError("Only the requester, the submitter or an administrator may do this", internal.ErrCodeNotOwner)
	ErrTerminal            = internal.NewConflictError("Request is already final", internal.ErrCodeTerminalStatus)
	ErrStale               = internal.NewConflictError("Request was changed by someone else, reload and try again", internal.ErrCodeStaleRequest)
	ErrInvalidStatus       = internal.NewConflictError("Request is not waiting for this action", internal.ErrCodeInvalidStatus)
	ErrResourceUnavailable = internal.NewConflictError("Vehicle or driver is not available for the travel dates", internal.ErrCodeResourceUnavailable)
	ErrUnauthenticated     = internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken)
	ErrHeadNotIncluded     = internal.NewValidationFieldError("head_included", "Faculty members cannot travel alone, the department head must be included", internal.ErrCodeHeadNotIncluded)
	ErrVehicleLimit        = internal.NewValidationFieldError("travel_start_date", "Daily vehicle request limit reached, try another date", internal.ErrCodeVehicleLimit)
	ErrInvalidCategory     = internal.NewValidationFieldError("category", "Return category must be one of budget_change, driver_change, details_change, missing_info, other", internal.ErrCodeInvalidCategory)
	ErrSelfPinned          = internal.NewValidationFieldError("next_approver_id", "The requester cannot be chosen as the next approver", internal.ErrCodeValidationFailed)
	ErrAwaitingInvitees    = internal.NewConflictError("Some invitees have not confirmed yet", internal.ErrCodeAwaitingInvitees)
)

// ListFilter narrows a request listing. Empty fields do not filter.
type ListFilter struct {
	OwnerID  string
	Statuses []string
	IDs      []string
	Limit    int
	Offset   int
}

// Repository persists requests and their audit trail. UpdateConditional
// writes req only while the stored row still has expectedStatus and
// expectedVersion, and reports whether it did.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	// GetForUpdate reads the row and holds its lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Request, error)
	UpdateConditional(ctx context.Context, req *Request, expectedStatus string, expectedVersion int) (bool, error)
	InsertHistory(ctx context.Context, h *History) error
	ListHistory(ctx context.Context, requestID string) ([]*History, error)
	List(ctx context.Context, filter ListFilter) ([]*Request, error)
	NextNumber(ctx context.Context, prefix string, year int) (int, error)
	// CountVehicleRequestsOn counts live vehicle requests starting on day.
	CountVehicleRequestsOn(ctx context.Context, day time.Time) (int64, error)
}

// signature returns the stage's signature block on req.
func signature(req *Request, stage workflow.Stage) *StageSignature {
	switch stage {
	case workflow.StageHead:
		return &req.Head
	case workflow.StageParentHead:
		return &req.ParentHead
	case workflow.StageAdmin:
		return &req.Admin
	case workflow.StageComptroller:
		return &req.Comptroller
	case workflow.StageHR:
		return &req.HR
	case workflow.StageExec:
		return &req.Exec
	}
	return nil
}

func signedStages(req *Request) workflow.StageSet {
	set := workflow.NewStageSet()
	for _, stage := range workflow.Chain() {
		if sig := signature(req, stage); sig != nil && sig.Signed() {
			set.Add(stage)
		}
	}
	return set
}

func stamp(sig *StageSignature, actorID, signatureBlob, comments string, at time.Time) {
	t := at
	sig.ApprovedAt = &t
	sig.ApprovedBy = actorID
	sig.Signature = signatureBlob
	sig.Comments = comments
}

func clearSignature(sig *StageSignature) {
	*sig = StageSignature{}
}

// EffectiveBudget prefers the comptroller's edited figure.
func EffectiveBudget(req *Request) decimal.Decimal {
	if req.ComptrollerEditedBudget.Valid {
		return req.ComptrollerEditedBudget.Decimal
	}
	return req.TotalBudget
}

func needsVehicle(req *Request) bool {
	return req.NeedsVehicle || req.NeedsRental ||
		req.VehicleMode == VehicleModeInstitutional || req.VehicleMode == VehicleModeRental
}

func fiscalYear(req *Request) int {
	return req.TravelStartDate.Year()
}

func metaString(m JSONMap, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func metaStrings(m JSONMap, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func signaturePresence(sig string) string {
	if sig == "" {
		return "none"
	}
	return "provided"
}
