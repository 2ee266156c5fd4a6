package rbac

import "github.com/frahmantamala/travel-approval/internal/workflow"

// CanApprove reports whether caps may act at status. Admins act at
// pending_admin and elsewhere only through the matching role.
func CanApprove(caps Capabilities, status workflow.Status, level workflow.ExecLevel) bool {
	if !status.IsApprovalStage() {
		return false
	}
	switch status {
	case workflow.StatusPendingExec:
		switch level {
		case workflow.ExecLevelPresident:
			return caps.Has(workflow.RolePresident)
		case workflow.ExecLevelVP, workflow.ExecLevelBothVPs:
			return caps.Has(workflow.RoleVP) || caps.Has(workflow.RolePresident)
		default:
			return caps.Has(workflow.RoleExec) || caps.Has(workflow.RoleVP) || caps.Has(workflow.RolePresident)
		}
	case workflow.StatusPendingPresident:
		return caps.Has(workflow.RolePresident)
	}
	role, ok := workflow.ApproverRole(status)
	return ok && caps.Has(role)
}

// Target is the part of a request that scopes who may act on it.
type Target struct {
	Status             workflow.Status
	ExecLevel          workflow.ExecLevel
	RequesterID        string
	SubmitterID        string
	DepartmentID       string
	ParentDepartmentID string
	// NextApproverID pins the stage to one user when the previous approver chose them.
	NextApproverID string
	// Delegated marks a stage whose only holder is the requester; a super
	// admin stands in for them.
	Delegated bool
}

// CanAct narrows CanApprove to this request: heads act for their own
// department (or the parent at pending_parent_head), a pinned next approver
// excludes everyone else, and nobody approves their own request. A delegated
// stage also admits a super admin.
func CanAct(a *Actor, t Target) bool {
	if a == nil || a.ID == "" {
		return false
	}
	if a.ID == t.RequesterID {
		return false
	}
	if t.Delegated && a.IsSuperAdmin() {
		return true
	}
	if !CanApprove(a.Caps, t.Status, t.ExecLevel) {
		return false
	}
	if t.NextApproverID != "" && t.NextApproverID != a.ID {
		return false
	}
	switch t.Status {
	case workflow.StatusPendingHead:
		return t.NextApproverID == a.ID || a.DepartmentID == t.DepartmentID
	case workflow.StatusPendingParentHead:
		return t.NextApproverID == a.ID || (t.ParentDepartmentID != "" && a.DepartmentID == t.ParentDepartmentID)
	}
	return true
}

// CanReturn follows CanAct: only the approver holding the request returns it.
func CanReturn(a *Actor, t Target) bool {
	return CanAct(a, t)
}

// CanCancel reports whether a may cancel, and whether a must re-enter their
// password first. The requester and the submitter cancel directly; admins
// may cancel anything after re-authentication.
func CanCancel(a *Actor, requesterID, submitterID string) (allowed bool, needsReauth bool) {
	if a == nil || a.ID == "" {
		return false, false
	}
	if a.ID == requesterID || (submitterID != "" && a.ID == submitterID) {
		return true, false
	}
	if a.Caps.Has(workflow.RoleAdmin) {
		return true, true
	}
	return false, false
}

// CanView lets owners, submitters and any approver read a request.
func CanView(a *Actor, t Target) bool {
	if a == nil || a.ID == "" {
		return false
	}
	if a.ID == t.RequesterID || a.ID == t.SubmitterID {
		return true
	}
	return a.Caps.IsApprover()
}
