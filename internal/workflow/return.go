package workflow

import "fmt"

// ReturnCategory classifies why a request goes back to its sender.
type ReturnCategory string

const (
	ReturnBudgetChange  ReturnCategory = "budget_change"
	ReturnDriverChange  ReturnCategory = "driver_change"
	ReturnDetailsChange ReturnCategory = "details_change"
	ReturnMissingInfo   ReturnCategory = "missing_info"
	ReturnOther         ReturnCategory = "other"
)

func (c ReturnCategory) IsValid() bool {
	switch c {
	case ReturnBudgetChange, ReturnDriverChange, ReturnDetailsChange, ReturnMissingInfo, ReturnOther:
		return true
	}
	return false
}

// Invalidates lists the signatures a return of this category voids. Every
// other collected signature survives the return.
func (c ReturnCategory) Invalidates() []Stage {
	switch c {
	case ReturnBudgetChange:
		return []Stage{StageComptroller}
	case ReturnDriverChange:
		return []Stage{StageAdmin}
	}
	return nil
}

// ReturnTarget is where a returned request lands.
type ReturnTarget string

const (
	ReturnToRequester ReturnTarget = "requester"
	ReturnToHead      ReturnTarget = "head"
)

// ReturnStatus resolves the status a return from current lands on.
func ReturnStatus(current Status, target ReturnTarget, a Attributes) (Status, error) {
	if !current.IsApprovalStage() {
		return "", fmt.Errorf("%w: cannot return from %s", ErrInvalidReturn, current)
	}
	switch target {
	case "", ReturnToRequester:
		return StatusPendingRequesterSignature, nil
	case ReturnToHead:
		if a.RequesterIsHead {
			return "", fmt.Errorf("%w: requester is the department head", ErrInvalidReturn)
		}
		if current == StatusPendingHead {
			return "", fmt.Errorf("%w: request is already with the head", ErrInvalidReturn)
		}
		return StatusPendingHead, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReturn, target)
}

// ReturnTargets lists where a request at current may be returned to.
func ReturnTargets(current Status, a Attributes) []ReturnTarget {
	if !current.IsApprovalStage() {
		return nil
	}
	targets := []ReturnTarget{ReturnToRequester}
	if _, err := ReturnStatus(current, ReturnToHead, a); err == nil {
		targets = append(targets, ReturnToHead)
	}
	return targets
}
