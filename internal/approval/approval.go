package approval

import (
	"context"
	"time"

	"github.com/frahmantamala/travel-approval/internal"
	approvalDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/approval"
)

type (
	Approval   = approvalDatamodel.Approval
	Invitation = approvalDatamodel.Invitation
)

// Policy decides when a fan-in step is satisfied.
type Policy string

const (
	PolicyAnyOne Policy = "any_one"
	PolicyAllOf  Policy = "all_of"
)

type Step string

const (
	StepHead       Step = "head"
	StepParentHead Step = "parent_head"
	StepExec       Step = "exec"
)

// Action is the state of one approver's row.
type Action string

const (
	ActionPending Action = "pending"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionLocked  Action = "locked"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) action() Action {
	if d == DecisionReject {
		return ActionReject
	}
	return ActionApprove
}

type InvitationKind string

const (
	InvitationParticipant     InvitationKind = "participant"
	InvitationRequester       InvitationKind = "requester"
	InvitationHeadEndorsement InvitationKind = "head_endorsement"
)

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationConfirmed InvitationStatus = "confirmed"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationExpired   InvitationStatus = "expired"
)

// Summary counts the rows of one step or invitation set.
type Summary struct {
	Total        int  `json:"total"`
	Confirmed    int  `json:"confirmed"`
	Pending      int  `json:"pending"`
	Declined     int  `json:"declined"`
	AllConfirmed bool `json:"all_confirmed"`
}

var (
	ErrAlreadyProcessed  = internal.NewConflictError("Approval already processed", internal.ErrCodeAlreadyProcessed)
	ErrNotInvited        = internal.NewForbiddenError("You are not an approver for this step", internal.ErrCodeNotApprover)
	ErrNoApprovers       = internal.NewValidationError("At least one approver is required", internal.ErrCodeValidationFailed)
	ErrInvitationExpired = internal.NewConflictError("Invitation has expired", internal.ErrCodeInvitationLapsed)
	ErrInvitationUnknown = internal.NewNotFoundError("Invitation not found", internal.ErrCodeInvitationUnknown)
)

// Repository persists approval and invitation rows. Transition and
// RespondInvitation are conditional: they report false when the row was
// not in the expected state.
type Repository interface {
	Create(ctx context.Context, rows []*Approval) error
	ListByStep(ctx context.Context, requestID string, step Step) ([]*Approval, error)
	ListByRequest(ctx context.Context, requestID string) ([]*Approval, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]*Approval, error)
	Transition(ctx context.Context, id string, from, to Action, signature, reason string, at time.Time) (bool, error)
	LockPending(ctx context.Context, requestID string, step Step, exceptID string, at time.Time) (int64, error)
	DeleteStep(ctx context.Context, requestID string, step Step) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, requestID string, kind InvitationKind) ([]*Invitation, error)
	RespondInvitation(ctx context.Context, id string, status InvitationStatus, at time.Time) (bool, error)
}
