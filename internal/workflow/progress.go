package workflow

import "math"

// Step is one row of the tracking timeline.
type Step struct {
	Stage    Stage  `json:"stage"`
	Role     Role   `json:"role"`
	Label    string `json:"label"`
	Status   Status `json:"status"`
	Signed   bool   `json:"signed"`
	Current  bool   `json:"current"`
	Required bool   `json:"required"`
}

// Steps returns the approval path for a, marking signed and current stages.
func (e *Engine) Steps(current Status, a Attributes) []Step {
	currentStage, _ := StageOf(current)
	path := e.Path(a)
	steps := make([]Step, 0, len(path))
	for _, s := range path {
		steps = append(steps, Step{
			Stage:    s,
			Role:     s.Role(),
			Label:    s.Role().Label(),
			Status:   s.Status(),
			Signed:   a.Signed.Has(s) || passed(current, s),
			Current:  s == currentStage && current.IsApprovalStage(),
			Required: true,
		})
	}
	return steps
}

// Progress is the completed share of the path in percent. Submission counts
// as one step and final approval as another; rejected and cancelled requests
// report zero.
func (e *Engine) Progress(current Status, a Attributes) int {
	switch current {
	case StatusApproved, StatusCompleted:
		return 100
	case StatusDraft, StatusRejected, StatusCancelled:
		return 0
	}
	path := e.Path(a)
	total := len(path) + 2
	done := 1
	if current != StatusPendingRequesterSignature {
		for _, s := range path {
			if passed(current, s) {
				done++
			}
		}
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// passed reports whether stage s comes before the current status.
func passed(current Status, s Stage) bool {
	if current == StatusApproved || current == StatusCompleted {
		return true
	}
	cur, ok := StageOf(current)
	if !ok {
		return false
	}
	return indexOf(s) < indexOf(cur)
}
