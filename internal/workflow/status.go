package workflow

import "fmt"

// Status is the wire value of a request's position in the approval chain.
type Status string

const (
	StatusDraft                     Status = "draft"
	StatusPendingRequesterSignature Status = "pending_requester_signature"
	StatusPendingHead               Status = "pending_head"
	StatusPendingParentHead         Status = "pending_parent_head"
	StatusPendingAdmin              Status = "pending_admin"
	StatusPendingComptroller        Status = "pending_comptroller"
	StatusPendingHR                 Status = "pending_hr"
	StatusPendingExec               Status = "pending_exec"
	// StatusPendingPresident is accepted on read only; Normalize folds it into
	// StatusPendingExec with a president level.
	StatusPendingPresident Status = "pending_president"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
	StatusCompleted        Status = "completed"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingRequesterSignature,
	StatusPendingHead,
	StatusPendingParentHead,
	StatusPendingAdmin,
	StatusPendingComptroller,
	StatusPendingHR,
	StatusPendingExec,
	StatusPendingPresident,
	StatusApproved,
	StatusRejected,
	StatusCancelled,
	StatusCompleted,
}

var statusLabels = map[Status]string{
	StatusDraft:                     "Draft",
	StatusPendingRequesterSignature: "Pending Requester Signature",
	StatusPendingHead:               "Pending Head Approval",
	StatusPendingParentHead:         "Pending Parent Department Head",
	StatusPendingAdmin:              "Pending Admin Processing",
	StatusPendingComptroller:        "Pending Comptroller Review",
	StatusPendingHR:                 "Pending HR Approval",
	StatusPendingExec:               "Pending Executive Approval",
	StatusPendingPresident:          "Pending President Approval",
	StatusApproved:                  "Approved",
	StatusRejected:                  "Rejected",
	StatusCancelled:                 "Cancelled",
	StatusCompleted:                 "Completed",
}

// AllStatuses returns every known status in chain order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw wire value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsApprovalStage reports whether an approver (not the requester) acts next.
func (s Status) IsApprovalStage() bool {
	switch s {
	case StatusPendingHead, StatusPendingParentHead, StatusPendingAdmin, StatusPendingComptroller,
		StatusPendingHR, StatusPendingExec, StatusPendingPresident:
		return true
	}
	return false
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Normalize maps the legacy president status onto the executive stage.
func Normalize(s Status, level ExecLevel) (Status, ExecLevel) {
	if s == StatusPendingPresident {
		return StatusPendingExec, ExecLevelPresident
	}
	return s, level
}

// IsPending reports whether the request still waits on someone.
func (s Status) IsPending() bool {
	return s == StatusPendingRequesterSignature || s.IsApprovalStage()
}

// StatusLabel is the display label for a raw status value.
func StatusLabel(raw string) string {
	return Status(raw).Label()
}
