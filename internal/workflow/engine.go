package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrTerminalStatus = errors.New("workflow: status is terminal")
	ErrUnknownStatus  = errors.New("workflow: unknown status")
	ErrInvalidReturn  = errors.New("workflow: invalid return target")
)

// Attributes are the request facts the routing rules branch on.
type Attributes struct {
	RequesterIsHead bool
	HasBudget       bool
	// NeedsVehicle covers both institutional vehicles and rentals.
	NeedsVehicle        bool
	HasParentDepartment bool
	// AwaitingRequesterSignature is set when someone else filed the request
	// and the requester has not signed yet.
	AwaitingRequesterSignature bool
	// Signed holds stages already signed, either pre-signed at submission
	// or preserved across a return.
	Signed StageSet
	// ExecOutstanding keeps the executive stage open while an ALL-OF
	// executive approval still waits for a signer.
	ExecOutstanding bool
	// SkipExecutive is set when the executive level resolves to auto-approve.
	SkipExecutive bool
}

type Options struct {
	// RequireExecutive routes HR approvals to pending_exec; when false HR is
	// the last stage.
	RequireExecutive bool
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

var defaultEngine = NewEngine(Options{RequireExecutive: true})

// NextStatus is the compact form of Engine.Next using the default routing.
func NextStatus(current Status, requesterIsHead, hasBudget bool) (Status, error) {
	return defaultEngine.Next(current, Attributes{RequesterIsHead: requesterIsHead, HasBudget: hasBudget})
}

// Initial returns the status a freshly submitted request enters.
func (e *Engine) Initial(a Attributes) Status {
	if a.AwaitingRequesterSignature {
		return StatusPendingRequesterSignature
	}
	return e.firstAfter(-1, a)
}

// Next returns the status that follows an approval at current.
func (e *Engine) Next(current Status, a Attributes) (Status, error) {
	switch current {
	case StatusDraft:
		return e.Initial(a), nil
	case StatusPendingRequesterSignature:
		return e.firstAfter(-1, a), nil
	case StatusPendingHead:
		return e.firstAfter(indexOf(StageHead), a), nil
	case StatusPendingParentHead:
		return e.firstAfter(indexOf(StageParentHead), a), nil
	case StatusPendingAdmin:
		return e.firstAfter(indexOf(StageAdmin), a), nil
	case StatusPendingComptroller:
		return e.firstAfter(indexOf(StageComptroller), a), nil
	case StatusPendingHR:
		return e.firstAfter(indexOf(StageHR), a), nil
	case StatusPendingExec, StatusPendingPresident:
		if a.ExecOutstanding {
			return StatusPendingExec, nil
		}
		return StatusApproved, nil
	case StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return "", fmt.Errorf("%w: %s", ErrTerminalStatus, current)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, current)
}

// Applies reports whether stage is part of the chain for a.
func (e *Engine) Applies(stage Stage, a Attributes) bool {
	switch stage {
	case StageHead:
		return !a.RequesterIsHead
	case StageParentHead:
		return a.HasParentDepartment && !a.RequesterIsHead
	case StageAdmin, StageHR:
		return true
	case StageComptroller:
		return a.HasBudget || a.NeedsVehicle
	case StageExec:
		return e.opts.RequireExecutive && !a.SkipExecutive
	}
	return false
}

// Path lists the stages a request with a passes through, signed ones included.
func (e *Engine) Path(a Attributes) []Stage {
	var out []Stage
	for _, s := range chain {
		if e.Applies(s, a) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) firstAfter(idx int, a Attributes) Status {
	for i := idx + 1; i < len(chain); i++ {
		stage := chain[i]
		if !e.Applies(stage, a) || a.Signed.Has(stage) {
			continue
		}
		return stage.Status()
	}
	return StatusApproved
}

func indexOf(stage Stage) int {
	for i, s := range chain {
		if s == stage {
			return i
		}
	}
	return -1
}

// InitialStatus is Engine.Initial on the default routing.
func InitialStatus(a Attributes) Status {
	return defaultEngine.Initial(a)
}
