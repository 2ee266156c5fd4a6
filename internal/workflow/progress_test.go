package workflow_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal/workflow"
)

var _ = Describe("Progress", func() {
	var engine *workflow.Engine

	BeforeEach(func() {
		engine = workflow.NewEngine(workflow.Options{RequireExecutive: true})
	})

	It("counts submission as the first step", func() {
		// head, admin, hr, exec plus submission and final approval
		Expect(engine.Progress(workflow.StatusPendingHead, workflow.Attributes{})).To(Equal(17))
		Expect(engine.Progress(workflow.StatusPendingHR, workflow.Attributes{})).To(Equal(50))
	})

	It("reports the end points", func() {
		Expect(engine.Progress(workflow.StatusDraft, workflow.Attributes{})).To(Equal(0))
		Expect(engine.Progress(workflow.StatusApproved, workflow.Attributes{})).To(Equal(100))
		Expect(engine.Progress(workflow.StatusRejected, workflow.Attributes{})).To(Equal(0))
	})

	It("lists the comptroller only for budgeted requests", func() {
		steps := engine.Steps(workflow.StatusPendingAdmin, workflow.Attributes{HasBudget: true})
		stages := make([]workflow.Stage, 0, len(steps))
		for _, s := range steps {
			stages = append(stages, s.Stage)
		}
		Expect(stages).To(Equal([]workflow.Stage{
			workflow.StageHead, workflow.StageAdmin, workflow.StageComptroller, workflow.StageHR, workflow.StageExec,
		}))
		Expect(steps[0].Signed).To(BeTrue())
		Expect(steps[1].Current).To(BeTrue())
		Expect(steps[1].Label).To(Equal("Transportation Management"))
	})
})

var _ = Describe("ReturnStatus", func() {
	It("sends the request back to the requester by default", func() {
		status, err := workflow.ReturnStatus(workflow.StatusPendingHR, "", workflow.Attributes{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(workflow.StatusPendingRequesterSignature))
	})

	It("can re-open the head stage", func() {
		status, err := workflow.ReturnStatus(workflow.StatusPendingAdmin, workflow.ReturnToHead, workflow.Attributes{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(workflow.StatusPendingHead))
	})

	It("refuses the head stage for head requesters", func() {
		_, err := workflow.ReturnStatus(workflow.StatusPendingAdmin, workflow.ReturnToHead, workflow.Attributes{RequesterIsHead: true})
		Expect(err).To(MatchError(workflow.ErrInvalidReturn))
	})

	It("refuses statuses outside the approval stages", func() {
		_, err := workflow.ReturnStatus(workflow.StatusApproved, workflow.ReturnToRequester, workflow.Attributes{})
		Expect(err).To(MatchError(workflow.ErrInvalidReturn))
		_, err = workflow.ReturnStatus(workflow.StatusDraft, workflow.ReturnToRequester, workflow.Attributes{})
		Expect(err).To(MatchError(workflow.ErrInvalidReturn))
	})

	It("voids only the signatures the category affects", func() {
		Expect(workflow.ReturnBudgetChange.Invalidates()).To(ConsistOf(workflow.StageComptroller))
		Expect(workflow.ReturnDriverChange.Invalidates()).To(ConsistOf(workflow.StageAdmin))
		Expect(workflow.ReturnMissingInfo.Invalidates()).To(BeEmpty())
		Expect(workflow.ReturnCategory("whim").IsValid()).To(BeFalse())
	})
})

var _ = Describe("helpers", func() {
	It("lists return targets", func() {
		Expect(workflow.ReturnTargets(workflow.StatusPendingHR, workflow.Attributes{})).
			To(Equal([]workflow.ReturnTarget{workflow.ReturnToRequester, workflow.ReturnToHead}))
		Expect(workflow.ReturnTargets(workflow.StatusPendingHead, workflow.Attributes{})).
			To(Equal([]workflow.ReturnTarget{workflow.ReturnToRequester}))
		Expect(workflow.ReturnTargets(workflow.StatusApproved, workflow.Attributes{})).To(BeEmpty())
	})

	It("expires only after the deadline", func() {
		deadline := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
		Expect(workflow.IsExpired(deadline, deadline.Add(-time.Second))).To(BeFalse())
		Expect(workflow.IsExpired(deadline, deadline)).To(BeFalse())
		Expect(workflow.IsExpired(deadline, deadline.Add(time.Nanosecond))).To(BeTrue())
		Expect(workflow.IsExpired(time.Time{}, deadline)).To(BeFalse())
	})

	It("treats requester signature as pending", func() {
		Expect(workflow.StatusPendingRequesterSignature.IsPending()).To(BeTrue())
		Expect(workflow.StatusDraft.IsPending()).To(BeFalse())
		Expect(workflow.StatusLabel("pending_hr")).To(Equal("Pending HR Approval"))
	})
})
