package rbac_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var _ = Describe("Resolver", func() {
	var resolver *rbac.Resolver

	BeforeEach(func() {
		resolver = rbac.NewResolver([]string{"Transport@University.edu"})
	})

	It("fails closed on missing flags", func() {
		Expect(resolver.Resolve("u1", "a@b.c", nil)).To(Equal(rbac.Capabilities(0)))
		Expect(resolver.Resolve("", "a@b.c", &rbac.Flags{IsAdmin: true})).To(Equal(rbac.Capabilities(0)))
	})

	It("grants requester to every known user", func() {
		caps := resolver.Resolve("u1", "faculty@university.edu", &rbac.Flags{})
		Expect(caps.Has(workflow.RoleRequester)).To(BeTrue())
		Expect(caps.IsApprover()).To(BeFalse())
	})

	It("maps flags onto roles", func() {
		caps := resolver.Resolve("u1", "", &rbac.Flags{IsHead: true, IsHR: true})
		Expect(caps.Roles()).To(Equal([]workflow.Role{workflow.RoleRequester, workflow.RoleHead, workflow.RoleHR}))
	})

	It("treats executive seats as executive roles", func() {
		caps := resolver.Resolve("u1", "", &rbac.Flags{ExecType: workflow.ExecTypeVP})
		Expect(caps.Has(workflow.RoleVP)).To(BeTrue())
		Expect(caps.Has(workflow.RoleExec)).To(BeTrue())
		Expect(caps.Has(workflow.RolePresident)).To(BeFalse())
	})

	It("grants admin through the e-mail allow-list", func() {
		caps := resolver.Resolve("u1", "transport@university.edu ", &rbac.Flags{})
		Expect(caps.Has(workflow.RoleAdmin)).To(BeTrue())
	})

	It("requires all three markers for super admin", func() {
		Expect(rbac.IsSuperAdmin(&rbac.Flags{IsAdmin: true, Role: "admin", SuperAdmin: true})).To(BeTrue())
		Expect(rbac.IsSuperAdmin(&rbac.Flags{IsAdmin: true, Role: "head", SuperAdmin: true})).To(BeFalse())
		Expect(rbac.IsSuperAdmin(&rbac.Flags{Role: "admin", SuperAdmin: true})).To(BeFalse())
		Expect(rbac.IsSuperAdmin(nil)).To(BeFalse())
	})
})

var _ = Describe("CanApprove", func() {
	caps := func(roles ...workflow.Role) rbac.Capabilities { return rbac.Capabilities(0).With(roles...) }

	DescribeTable("role gate",
		func(c rbac.Capabilities, status workflow.Status, level workflow.ExecLevel, want bool) {
			Expect(rbac.CanApprove(c, status, level)).To(Equal(want))
		},
		Entry("head at pending_head", caps(workflow.RoleHead), workflow.StatusPendingHead, workflow.ExecLevelNone, true),
		Entry("head at parent head", caps(workflow.RoleHead), workflow.StatusPendingParentHead, workflow.ExecLevelNone, true),
		Entry("admin at pending_admin", caps(workflow.RoleAdmin), workflow.StatusPendingAdmin, workflow.ExecLevelNone, true),
		Entry("admin at pending_hr", caps(workflow.RoleAdmin), workflow.StatusPendingHR, workflow.ExecLevelNone, false),
		Entry("admin flagged hr at pending_hr", caps(workflow.RoleAdmin, workflow.RoleHR), workflow.StatusPendingHR, workflow.ExecLevelNone, true),
		Entry("vp at president level", caps(workflow.RoleVP, workflow.RoleExec), workflow.StatusPendingExec, workflow.ExecLevelPresident, false),
		Entry("president at president level", caps(workflow.RolePresident), workflow.StatusPendingExec, workflow.ExecLevelPresident, true),
		Entry("president at vp level", caps(workflow.RolePresident), workflow.StatusPendingExec, workflow.ExecLevelVP, true),
		Entry("vp at both vps", caps(workflow.RoleVP), workflow.StatusPendingExec, workflow.ExecLevelBothVPs, true),
		Entry("legacy president status", caps(workflow.RoleVP), workflow.StatusPendingPresident, workflow.ExecLevelNone, false),
		Entry("nobody approves a draft", caps(workflow.RoleAdmin, workflow.RoleHead), workflow.StatusDraft, workflow.ExecLevelNone, false),
		Entry("nobody approves a final request", caps(workflow.RoleAdmin), workflow.StatusApproved, workflow.ExecLevelNone, false),
		Entry("no capabilities", rbac.Capabilities(0), workflow.StatusPendingHead, workflow.ExecLevelNone, false),
	)
})

var _ = Describe("CanAct", func() {
	var head *rbac.Actor

	BeforeEach(func() {
		head = &rbac.Actor{ID: "head-1", DepartmentID: "dept-a", Caps: rbac.Capabilities(0).With(workflow.RoleRequester, workflow.RoleHead)}
	})

	It("allows the head of the request's department", func() {
		Expect(rbac.CanAct(head, rbac.Target{Status: workflow.StatusPendingHead, RequesterID: "u1", DepartmentID: "dept-a"})).To(BeTrue())
	})

	It("refuses heads of other departments", func() {
		Expect(rbac.CanAct(head, rbac.Target{Status: workflow.StatusPendingHead, RequesterID: "u1", DepartmentID: "dept-b"})).To(BeFalse())
	})

	It("sends the parent stage to the parent department's head", func() {
		t := rbac.Target{Status: workflow.StatusPendingParentHead, RequesterID: "u1", DepartmentID: "dept-b", ParentDepartmentID: "dept-a"}
		Expect(rbac.CanAct(head, t)).To(BeTrue())
	})

	It("never lets requesters approve their own request", func() {
		Expect(rbac.CanAct(head, rbac.Target{Status: workflow.StatusPendingHead, RequesterID: "head-1", DepartmentID: "dept-a"})).To(BeFalse())
	})

	It("honours a pinned next approver", func() {
		t := rbac.Target{Status: workflow.StatusPendingHead, RequesterID: "u1", DepartmentID: "dept-a", NextApproverID: "head-2"}
		Expect(rbac.CanAct(head, t)).To(BeFalse())
		t.NextApproverID = "head-1"
		Expect(rbac.CanAct(head, t)).To(BeTrue())
	})

	It("fails closed on a nil actor", func() {
		Expect(rbac.CanAct(nil, rbac.Target{Status: workflow.StatusPendingAdmin})).To(BeFalse())
	})

	It("admits a super admin only at a delegated stage", func() {
		root := &rbac.Actor{ID: "root", Flags: rbac.Flags{Role: "admin", IsAdmin: true, SuperAdmin: true}}
		t := rbac.Target{Status: workflow.StatusPendingHR, RequesterID: "hr-1"}
		Expect(rbac.CanAct(root, t)).To(BeFalse())

		t.Delegated = true
		Expect(rbac.CanAct(root, t)).To(BeTrue())

		hr := &rbac.Actor{ID: "hr-1", Caps: rbac.Capabilities(0).With(workflow.RoleHR), Flags: rbac.Flags{Role: "admin", IsAdmin: true, SuperAdmin: true}}
		Expect(rbac.CanAct(hr, t)).To(BeFalse())
	})
})

var _ = Describe("CanCancel", func() {
	It("lets the requester and submitter cancel directly", func() {
		requester := &rbac.Actor{ID: "u1"}
		allowed, reauth := rbac.CanCancel(requester, "u1", "u2")
		Expect(allowed).To(BeTrue())
		Expect(reauth).To(BeFalse())

		submitter := &rbac.Actor{ID: "u2"}
		allowed, reauth = rbac.CanCancel(submitter, "u1", "u2")
		Expect(allowed).To(BeTrue())
		Expect(reauth).To(BeFalse())
	})

	It("makes admins re-authenticate", func() {
		admin := &rbac.Actor{ID: "a1", Caps: rbac.Capabilities(0).With(workflow.RoleAdmin)}
		allowed, reauth := rbac.CanCancel(admin, "u1", "")
		Expect(allowed).To(BeTrue())
		Expect(reauth).To(BeTrue())
	})

	It("refuses anyone else", func() {
		hr := &rbac.Actor{ID: "h1", Caps: rbac.Capabilities(0).With(workflow.RoleHR)}
		allowed, _ := rbac.CanCancel(hr, "u1", "u2")
		Expect(allowed).To(BeFalse())
	})
})

var _ = Describe("Authorization middleware", func() {
	var (
		az   *rbac.Authorization
		next http.Handler
	)

	BeforeEach(func() {
		az = rbac.NewAuthorization(logger.Discard())
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	})

	serve := func(h http.Handler, actor *rbac.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor != nil {
			req = req.WithContext(rbac.WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	It("rejects anonymous requests", func() {
		Expect(serve(az.RequireAny(workflow.RoleAdmin)(next), nil).Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects actors without the role", func() {
		actor := &rbac.Actor{ID: "u1", Caps: rbac.Capabilities(0).With(workflow.RoleRequester)}
		Expect(serve(az.RequireAny(workflow.RoleAdmin)(next), actor).Code).To(Equal(http.StatusForbidden))
	})

	It("passes actors holding one of the roles", func() {
		actor := &rbac.Actor{ID: "u1", Caps: rbac.Capabilities(0).With(workflow.RoleComptroller)}
		Expect(serve(az.RequireAny(workflow.RoleAdmin, workflow.RoleComptroller)(next), actor).Code).To(Equal(http.StatusNoContent))
	})

	It("checks super admin", func() {
		actor := &rbac.Actor{ID: "u1", Flags: rbac.Flags{IsAdmin: true, Role: "admin"}}
		Expect(serve(az.RequireSuperAdmin()(next), actor).Code).To(Equal(http.StatusForbidden))
		actor.Flags.SuperAdmin = true
		Expect(serve(az.RequireSuperAdmin()(next), actor).Code).To(Equal(http.StatusNoContent))
	})
})
