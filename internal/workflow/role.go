package workflow

// Role is the label of whoever is expected to act on a status.
type Role string

const (
	RoleRequester   Role = "requester"
	RoleHead        Role = "head"
	RoleAdmin       Role = "admin"
	RoleComptroller Role = "comptroller"
	RoleHR          Role = "hr"
	RoleVP          Role = "vp"
	RolePresident   Role = "president"
	RoleExec        Role = "exec"
)

var roleLabels = map[Role]string{
	RoleRequester:   "Requester",
	RoleHead:        "Department Head",
	RoleAdmin:       "Transportation Management",
	RoleComptroller: "Comptroller",
	RoleHR:          "HR",
	RoleVP:          "Vice President",
	RolePresident:   "President",
	RoleExec:        "Executive",
}

func (r Role) String() string { return string(r) }

// Label is the display name used for notifications and tracking.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// ApproverRole returns the role expected to act at status. Draft and terminal
// statuses have no actor.
func ApproverRole(s Status) (Role, bool) {
	switch s {
	case StatusPendingRequesterSignature:
		return RoleRequester, true
	case StatusPendingHead, StatusPendingParentHead:
		return RoleHead, true
	case StatusPendingAdmin:
		return RoleAdmin, true
	case StatusPendingComptroller:
		return RoleComptroller, true
	case StatusPendingHR:
		return RoleHR, true
	case StatusPendingExec:
		return RoleExec, true
	case StatusPendingPresident:
		return RolePresident, true
	case StatusDraft, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return "", false
	}
	return "", false
}

// ExecApproverRole narrows the executive stage to the role the level requires.
func ExecApproverRole(level ExecLevel) Role {
	switch level {
	case ExecLevelPresident:
		return RolePresident
	case ExecLevelVP, ExecLevelBothVPs:
		return RoleVP
	default:
		return RoleExec
	}
}
