package workflow_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal/workflow"
)

var _ = Describe("ExecutiveLevel", func() {
	threshold := decimal.NewFromInt(50000)

	DescribeTable("picks the signer",
		func(in workflow.ExecInput, want workflow.ExecLevel) {
			Expect(workflow.ExecutiveLevel(in, threshold)).To(Equal(want))
		},
		Entry("president requester signs their own", workflow.ExecInput{RequesterExecType: workflow.ExecTypePresident}, workflow.ExecLevelAutoApprove),
		Entry("vp requester goes to the president", workflow.ExecInput{RequesterExecType: workflow.ExecTypeVP}, workflow.ExecLevelPresident),
		Entry("budget above threshold", workflow.ExecInput{TotalBudget: decimal.NewFromInt(50001)}, workflow.ExecLevelPresident),
		Entry("budget at threshold", workflow.ExecInput{TotalBudget: decimal.NewFromInt(50000)}, workflow.ExecLevelVP),
		Entry("international trip", workflow.ExecInput{International: true}, workflow.ExecLevelPresident),
		Entry("head requester", workflow.ExecInput{RequesterIsHead: true}, workflow.ExecLevelPresident),
		Entry("dean requester", workflow.ExecInput{RequesterPosition: "dean"}, workflow.ExecLevelPresident),
		Entry("multi department", workflow.ExecInput{BothVPsRequired: true}, workflow.ExecLevelBothVPs),
		Entry("plain faculty", workflow.ExecInput{}, workflow.ExecLevelVP),
	)

	It("counts required signers", func() {
		Expect(workflow.ExecLevelBothVPs.RequiredSigners()).To(Equal(2))
		Expect(workflow.ExecLevelVP.RequiredSigners()).To(Equal(1))
		Expect(workflow.ExecLevelAutoApprove.RequiredSigners()).To(Equal(0))
	})
})
