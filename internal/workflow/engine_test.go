package workflow_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal/workflow"
)

var _ = Describe("Engine", func() {
	var engine *workflow.Engine

	BeforeEach(func() {
		engine = workflow.NewEngine(workflow.Options{RequireExecutive: true})
	})

	Describe("NextStatus", func() {
		It("returns a valid successor for every non-terminal status and flag combination", func() {
			for _, status := range workflow.AllStatuses() {
				if status.IsTerminal() {
					continue
				}
				for _, isHead := range []bool{true, false} {
					for _, hasBudget := range []bool{true, false} {
						next, err := workflow.NextStatus(status, isHead, hasBudget)
						Expect(err).NotTo(HaveOccurred(), "status %s head=%v budget=%v", status, isHead, hasBudget)
						Expect(next.IsValid()).To(BeTrue())
						Expect(next).NotTo(Equal(workflow.StatusPendingPresident))
					}
				}
			}
		})

		It("fails on terminal statuses", func() {
			for _, status := range []workflow.Status{
				workflow.StatusApproved, workflow.StatusRejected, workflow.StatusCancelled, workflow.StatusCompleted,
			} {
				_, err := workflow.NextStatus(status, false, false)
				Expect(err).To(MatchError(workflow.ErrTerminalStatus))
			}
		})

		It("fails on unknown statuses", func() {
			_, err := workflow.NextStatus(workflow.Status("pending_dean"), false, false)
			Expect(err).To(MatchError(workflow.ErrUnknownStatus))
		})

		It("skips the comptroller when there is no budget", func() {
			next, err := workflow.NextStatus(workflow.StatusPendingAdmin, false, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingHR))
		})

		It("routes budgeted requests to the comptroller", func() {
			next, err := workflow.NextStatus(workflow.StatusPendingAdmin, false, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingComptroller))
		})

		It("routes vehicle requests to the comptroller even without budget", func() {
			next, err := engine.Next(workflow.StatusPendingAdmin, workflow.Attributes{NeedsVehicle: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingComptroller))
		})
	})

	Describe("self approval", func() {
		It("never routes a head requester to pending_head", func() {
			for _, status := range workflow.AllStatuses() {
				if status.IsTerminal() {
					continue
				}
				for _, hasBudget := range []bool{true, false} {
					next, err := engine.Next(status, workflow.Attributes{RequesterIsHead: true, HasBudget: hasBudget, HasParentDepartment: true})
					Expect(err).NotTo(HaveOccurred())
					Expect(next).NotTo(Equal(workflow.StatusPendingHead))
					Expect(next).NotTo(Equal(workflow.StatusPendingParentHead))
				}
			}
		})

		It("starts a head requester at admin", func() {
			Expect(engine.Initial(workflow.Attributes{RequesterIsHead: true})).To(Equal(workflow.StatusPendingAdmin))
		})

		It("skips stages the requester pre-signed", func() {
			a := workflow.Attributes{HasBudget: true, Signed: workflow.NewStageSet(workflow.StageComptroller)}
			next, err := engine.Next(workflow.StatusPendingAdmin, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingHR))
		})
	})

	Describe("full chain", func() {
		It("walks a plain faculty request from head to approval in four approvals", func() {
			// Given no budget, no vehicle, faculty requester
			a := workflow.Attributes{}
			status := engine.Initial(a)
			Expect(status).To(Equal(workflow.StatusPendingHead))

			var visited []workflow.Status
			for !status.IsTerminal() {
				next, err := engine.Next(status, a)
				Expect(err).NotTo(HaveOccurred())
				visited = append(visited, next)
				status = next
			}

			Expect(visited).To(Equal([]workflow.Status{
				workflow.StatusPendingAdmin,
				workflow.StatusPendingHR,
				workflow.StatusPendingExec,
				workflow.StatusApproved,
			}))
		})

		It("inserts the parent head when the department has a parent", func() {
			a := workflow.Attributes{HasParentDepartment: true}
			next, err := engine.Next(workflow.StatusPendingHead, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingParentHead))

			next, err = engine.Next(next, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingAdmin))
		})

		It("ends at HR when the executive stage is disabled", func() {
			direct := workflow.NewEngine(workflow.Options{RequireExecutive: false})
			next, err := direct.Next(workflow.StatusPendingHR, workflow.Attributes{})
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusApproved))
		})

		It("ends at HR when the executive level auto-approves", func() {
			next, err := engine.Next(workflow.StatusPendingHR, workflow.Attributes{SkipExecutive: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusApproved))
		})

		It("keeps the executive stage open while a second signer is outstanding", func() {
			next, err := engine.Next(workflow.StatusPendingExec, workflow.Attributes{ExecOutstanding: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingExec))
		})

		It("approves the legacy president status", func() {
			next, err := engine.Next(workflow.StatusPendingPresident, workflow.Attributes{})
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusApproved))
		})
	})

	Describe("requester signature", func() {
		It("waits for the requester when someone else filed the request", func() {
			a := workflow.Attributes{AwaitingRequesterSignature: true}
			next, err := engine.Next(workflow.StatusDraft, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingRequesterSignature))

			a.AwaitingRequesterSignature = false
			next, err = engine.Next(next, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingHead))
		})

		It("resumes at the first unsigned stage after a return", func() {
			a := workflow.Attributes{HasBudget: true, Signed: workflow.NewStageSet(workflow.StageHead, workflow.StageAdmin)}
			next, err := engine.Next(workflow.StatusPendingRequesterSignature, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(workflow.StatusPendingComptroller))
		})
	})

	DescribeTable("ApproverRole",
		func(status workflow.Status, role workflow.Role, ok bool) {
			got, found := workflow.ApproverRole(status)
			Expect(found).To(Equal(ok))
			Expect(got).To(Equal(role))
		},
		Entry("head", workflow.StatusPendingHead, workflow.RoleHead, true),
		Entry("parent head", workflow.StatusPendingParentHead, workflow.RoleHead, true),
		Entry("admin", workflow.StatusPendingAdmin, workflow.RoleAdmin, true),
		Entry("comptroller", workflow.StatusPendingComptroller, workflow.RoleComptroller, true),
		Entry("hr", workflow.StatusPendingHR, workflow.RoleHR, true),
		Entry("exec", workflow.StatusPendingExec, workflow.RoleExec, true),
		Entry("president", workflow.StatusPendingPresident, workflow.RolePresident, true),
		Entry("draft", workflow.StatusDraft, workflow.Role(""), false),
		Entry("approved", workflow.StatusApproved, workflow.Role(""), false),
	)

	It("labels roles for notifications", func() {
		Expect(workflow.RoleAdmin.Label()).To(Equal("Transportation Management"))
		Expect(workflow.RoleHead.Label()).To(Equal("Department Head"))
		Expect(workflow.RoleVP.Label()).To(Equal("Vice President"))
		Expect(workflow.RoleExec.Label()).To(Equal("Executive"))
	})

	It("folds pending_president into the executive stage", func() {
		status, level := workflow.Normalize(workflow.StatusPendingPresident, workflow.ExecLevelVP)
		Expect(status).To(Equal(workflow.StatusPendingExec))
		Expect(level).To(Equal(workflow.ExecLevelPresident))
	})
})
