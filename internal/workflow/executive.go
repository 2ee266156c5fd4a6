package workflow

import "github.com/shopspring/decimal"

// ExecLevel is who must sign the executive stage.
type ExecLevel string

const (
	ExecLevelNone        ExecLevel = ""
	ExecLevelVP          ExecLevel = "vp"
	ExecLevelBothVPs     ExecLevel = "both_vps"
	ExecLevelPresident   ExecLevel = "president"
	ExecLevelAutoApprove ExecLevel = "auto_approve"
)

// ExecType is an executive's seat.
type ExecType string

const (
	ExecTypeNone      ExecType = ""
	ExecTypeVP        ExecType = "vp"
	ExecTypePresident ExecType = "president"
)

// ExecInput carries the request and requester facts that pick the level.
type ExecInput struct {
	RequesterExecType ExecType
	RequesterIsHead   bool
	// RequesterPosition is the academic position, e.g. "director" or "dean".
	RequesterPosition string
	TotalBudget       decimal.Decimal
	International     bool
	BothVPsRequired   bool
}

// ExecutiveLevel decides who signs the executive stage. Budgets strictly
// above threshold escalate to the president.
func ExecutiveLevel(in ExecInput, threshold decimal.Decimal) ExecLevel {
	switch in.RequesterExecType {
	case ExecTypePresident:
		return ExecLevelAutoApprove
	case ExecTypeVP:
		return ExecLevelPresident
	}
	if in.TotalBudget.GreaterThan(threshold) || in.International {
		return ExecLevelPresident
	}
	if in.RequesterIsHead || in.RequesterPosition == "director" || in.RequesterPosition == "dean" {
		return ExecLevelPresident
	}
	if in.BothVPsRequired {
		return ExecLevelBothVPs
	}
	return ExecLevelVP
}

// RequiredSigners is how many executive approvals close the stage.
func (l ExecLevel) RequiredSigners() int {
	switch l {
	case ExecLevelBothVPs:
		return 2
	case ExecLevelAutoApprove:
		return 0
	default:
		return 1
	}
}
