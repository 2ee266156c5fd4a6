package department_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	departmentDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/department"
	"github.com/frahmantamala/travel-approval/internal/department"
	"github.com/frahmantamala/travel-approval/internal/department/postgres"
	"github.com/frahmantamala/travel-approval/internal/store/storetest"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var _ = Describe("Department Service", func() {
	var (
		db      *gorm.DB
		service *department.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		service = department.NewService(postgres.NewDepartmentRepository(db), logger.Discard())
		ctx = context.Background()

		college := "college"
		Expect(db.Create(&departmentDatamodel.Department{ID: college, Code: "CAS", Name: "College of Arts and Sciences"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&departmentDatamodel.Department{ID: "cs", Code: "CS", Name: "Computer Science", ParentDepartmentID: &college}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&departmentDatamodel.Budget{
			ID:             "b1",
			DepartmentID:   "cs",
			FiscalYear:     2025,
			TotalAllocated: decimal.NewFromInt(100000),
			TotalUsed:      decimal.NewFromInt(40000),
			TotalPending:   decimal.NewFromInt(10000),
		}).Error).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		storetest.Close(db)
	})

	It("resolves the parent department", func() {
		parent, err := service.Parent(ctx, "cs")
		Expect(err).NotTo(HaveOccurred())
		Expect(parent).NotTo(BeNil())
		Expect(parent.Code).To(Equal("CAS"))

		top, err := service.Parent(ctx, "college")
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(BeNil())
	})

	It("returns not found for unknown departments", func() {
		_, err := service.Get(ctx, "nope")
		Expect(err).To(MatchError(department.ErrDepartmentNotFound))
	})

	It("reserves within the remaining budget", func() {
		Expect(service.Reserve(ctx, "cs", 2025, decimal.NewFromInt(50000))).To(Succeed())

		budget, err := service.Budget(ctx, "cs", 2025)
		Expect(err).NotTo(HaveOccurred())
		Expect(budget.Remaining().IsZero()).To(BeTrue())
	})

	It("refuses a reservation the remainder cannot cover", func() {
		err := service.Reserve(ctx, "cs", 2025, decimal.NewFromInt(50001))
		Expect(err).To(MatchError(department.ErrBudgetExceeded))
	})

	It("does not control departments without an allocation", func() {
		Expect(service.Reserve(ctx, "college", 2025, decimal.NewFromInt(1_000_000))).To(Succeed())
	})

	It("moves a reservation to used on commit", func() {
		amount := decimal.NewFromInt(5000)
		Expect(service.Reserve(ctx, "cs", 2025, amount)).To(Succeed())
		Expect(service.Commit(ctx, "cs", 2025, amount)).To(Succeed())

		budget, err := service.Budget(ctx, "cs", 2025)
		Expect(err).NotTo(HaveOccurred())
		Expect(budget.TotalUsed.Equal(decimal.NewFromInt(45000))).To(BeTrue())
		Expect(budget.TotalPending.Equal(decimal.NewFromInt(10000))).To(BeTrue())
	})

	It("returns a reservation on release", func() {
		Expect(service.Release(ctx, "cs", 2025, decimal.NewFromInt(10000))).To(Succeed())
		budget, err := service.Budget(ctx, "cs", 2025)
		Expect(err).NotTo(HaveOccurred())
		Expect(budget.TotalPending.IsZero()).To(BeTrue())
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			h := department.NewHandler(transport.NewBaseHandler(logger.Discard()), service)
			router = chi.NewRouter()
			router.Get("/departments", h.GetDepartments)
			router.Get("/departments/{id}/budget", h.GetBudget)
		})

		It("lists departments", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/departments", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body department.DepartmentsResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Departments).To(HaveLen(2))
		})

		It("reports the remaining budget", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/departments/cs/budget?fiscal_year=2025", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body department.BudgetResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Remaining).To(Equal("50000.00"))
		})

		It("maps unknown departments to 404", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/departments/nope/budget", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
