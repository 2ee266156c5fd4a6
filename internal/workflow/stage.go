package workflow

// Stage is one signing step of the chain; it owns the per-stage
// approved_at/by/signature/comments fields of a request.
type Stage string

const (
	StageHead        Stage = "head"
	StageParentHead  Stage = "parent_head"
	StageAdmin       Stage = "admin"
	StageComptroller Stage = "comptroller"
	StageHR          Stage = "hr"
	StageExec        Stage = "exec"
)

// chain is the canonical signing order.
var chain = []Stage{StageHead, StageParentHead, StageAdmin, StageComptroller, StageHR, StageExec}

var stageStatus = map[Stage]Status{
	StageHead:        StatusPendingHead,
	StageParentHead:  StatusPendingParentHead,
	StageAdmin:       StatusPendingAdmin,
	StageComptroller: StatusPendingComptroller,
	StageHR:          StatusPendingHR,
	StageExec:        StatusPendingExec,
}

var stageRole = map[Stage]Role{
	StageHead:        RoleHead,
	StageParentHead:  RoleHead,
	StageAdmin:       RoleAdmin,
	StageComptroller: RoleComptroller,
	StageHR:          RoleHR,
	StageExec:        RoleExec,
}

// Chain returns the stages in signing order.
func Chain() []Stage {
	out := make([]Stage, len(chain))
	copy(out, chain)
	return out
}

func (s Stage) Status() Status { return stageStatus[s] }

func (s Stage) Role() Role { return stageRole[s] }

// StageOf returns the stage whose signature a status collects.
func StageOf(s Status) (Stage, bool) {
	switch s {
	case StatusPendingHead:
		return StageHead, true
	case StatusPendingParentHead:
		return StageParentHead, true
	case StatusPendingAdmin:
		return StageAdmin, true
	case StatusPendingComptroller:
		return StageComptroller, true
	case StatusPendingHR:
		return StageHR, true
	case StatusPendingExec, StatusPendingPresident:
		return StageExec, true
	}
	return "", false
}

// StageSet records which stages already carry a signature.
type StageSet map[Stage]bool

func NewStageSet(stages ...Stage) StageSet {
	set := make(StageSet, len(stages))
	for _, s := range stages {
		set[s] = true
	}
	return set
}

func (set StageSet) Has(s Stage) bool { return set != nil && set[s] }

func (set StageSet) Add(s Stage) StageSet {
	if set == nil {
		set = StageSet{}
	}
	set[s] = true
	return set
}
