package report_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal"
	requestDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	"github.com/frahmantamala/travel-approval/internal/report"
	"github.com/frahmantamala/travel-approval/internal/store/storetest"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	"github.com/frahmantamala/travel-approval/internal/travelrequest/postgres"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var _ = Describe("Exporter", func() {
	var (
		db       *gorm.DB
		ctx      context.Context
		exporter *report.Exporter
	)

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		var err error
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()

		repo := postgres.NewRequestRepository(db)
		exporter = report.NewExporter(repo, logger.Discard())

		Expect(repo.Create(ctx, &requestDatamodel.Request{
			ID: "r1", RequestNumber: "TO-2025-0001", RequestType: "travel_order",
			RequesterID: "u1", SubmittedByUserID: "u1", DepartmentID: "cs",
			Destination: "Davao", HasBudget: true, TotalBudget: decimal.NewFromInt(1500),
			TravelStartDate: at, TravelEndDate: at.AddDate(0, 0, 2),
			Status: "pending_admin", Version: 2,
		})).To(Succeed())
		Expect(repo.Create(ctx, &requestDatamodel.Request{
			ID: "r2", RequestNumber: "TO-2025-0002", RequestType: "travel_order",
			RequesterID: "u2", SubmittedByUserID: "u2", DepartmentID: "math",
			TravelStartDate: at, TravelEndDate: at,
			Status: "rejected", Version: 2,
		})).To(Succeed())
		Expect(repo.InsertHistory(ctx, &requestDatamodel.History{
			ID: "h1", RequestID: "r1", Action: "approved", ActorID: "u-head", ActorRole: "head",
			PreviousStatus: "pending_head", NewStatus: "pending_admin", CreatedAt: at,
		})).To(Succeed())
		Expect(repo.InsertHistory(ctx, &requestDatamodel.History{
			ID: "h2", RequestID: "r2", Action: "rejected", ActorID: "u-head", ActorRole: "head",
			PreviousStatus: "pending_head", NewStatus: "rejected", Comments: "no funds", CreatedAt: at,
		})).To(Succeed())
	})

	AfterEach(func() {
		storetest.Close(db)
	})

	open := func(buf *bytes.Buffer) *excelize.File {
		f, err := excelize.OpenReader(buf)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(f.Close)
		return f
	}

	It("writes one row per request and every history row", func() {
		var buf bytes.Buffer
		n, err := exporter.Write(ctx, &buf, travelrequest.ListFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		f := open(&buf)
		Expect(f.GetSheetList()).To(Equal([]string{"Requests", "History"}))

		rows, err := f.GetRows("Requests")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0][0]).To(Equal("Request Number"))

		var budgetRow []string
		for _, r := range rows[1:] {
			if r[0] == "TO-2025-0001" {
				budgetRow = r
			}
		}
		Expect(budgetRow).NotTo(BeNil())
		Expect(budgetRow[5]).To(Equal("2025-03-01"))
		Expect(budgetRow[7]).To(Equal("1500.00"))

		history, err := f.GetRows("History")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(3))
	})

	It("narrows the export by status", func() {
		var buf bytes.Buffer
		n, err := exporter.Write(ctx, &buf, travelrequest.ListFilter{Statuses: []string{"rejected"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		history, err := open(&buf).GetRows("History")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
		Expect(history[1][2]).To(Equal("rejected"))
		Expect(history[1][7]).To(Equal("no funds"))
	})
})

type stubExporter struct {
	err    error
	filter travelrequest.ListFilter
}

func (s *stubExporter) Write(ctx context.Context, w io.Writer, filter travelrequest.ListFilter) (int, error) {
	s.filter = filter
	if s.err != nil {
		return 0, s.err
	}
	_, err := w.Write([]byte("xlsx"))
	return 1, err
}

var _ = Describe("Handler", func() {
	It("streams the workbook as an attachment", func() {
		stub := &stubExporter{}
		h := report.NewHandler(transport.NewBaseHandler(logger.Discard()), stub)

		rec := httptest.NewRecorder()
		h.ExportHistory(rec, httptest.NewRequest(http.MethodGet, "/reports/history.xlsx?status=approved,%20completed", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("travel-history-"))
		Expect(rec.Body.String()).To(Equal("xlsx"))
		Expect(stub.filter.Statuses).To(Equal([]string{"approved", "completed"}))
	})

	It("reports store failures as JSON", func() {
		stub := &stubExporter{err: internal.NewUpstreamUnavailableError("db down", internal.ErrCodePersistence, errors.New("boom"))}
		h := report.NewHandler(transport.NewBaseHandler(logger.Discard()), stub)

		rec := httptest.NewRecorder()
		h.ExportHistory(rec, httptest.NewRequest(http.MethodGet, "/reports/history.xlsx", nil))

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
	})
})
