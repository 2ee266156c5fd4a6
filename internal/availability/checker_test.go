package availability_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/availability/postgres"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	"github.com/frahmantamala/travel-approval/internal/core/datamodel/resource"
	"github.com/frahmantamala/travel-approval/internal/store/storetest"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	Expect(err).NotTo(HaveOccurred())
	return t
}

type failingRepo struct{}

func (failingRepo) OverlappingAssignments(context.Context, availability.Kind, string, time.Time, time.Time) ([]availability.Conflict, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) ResourceState(context.Context, availability.Kind, string) (*availability.ResourceState, error) {
	return nil, errors.New("connection refused")
}

var _ = Describe("Checker", func() {
	var (
		db      *gorm.DB
		checker *availability.Checker
		ctx     context.Context
	)

	seedRequest := func(id, number, vehicleID, driverID, status, start, end string) {
		req := &request.Request{
			ID:                id,
			RequestNumber:     number,
			RequestType:       "travel_order",
			RequesterID:       "u1",
			SubmittedByUserID: "u1",
			Status:            status,
			TravelStartDate:   day(start),
			TravelEndDate:     day(end),
			Version:           1,
		}
		if vehicleID != "" {
			req.AssignedVehicleID = &vehicleID
		}
		if driverID != "" {
			req.AssignedDriverID = &driverID
		}
		Expect(db.Create(req).Error).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB, err := storetest.SQLX(db)
		Expect(err).NotTo(HaveOccurred())

		checker = availability.NewChecker(postgres.NewAvailabilityRepository(sqlxDB), logger.Discard(),
			internal.AvailabilityConfig{FailOpen: true, QueryTimeout: time.Second})
		ctx = context.Background()

		Expect(db.Create(&resource.Vehicle{ID: "v1", PlateNumber: "ABC-123", Name: "Van 1", Status: availability.StatusAvailable}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&resource.Driver{ID: "d1", Name: "Driver 1", Status: availability.StatusAvailable}).Error).NotTo(HaveOccurred())
		seedRequest("r1", "TO-2025-0001", "v1", "d1", "approved", "2025-01-10", "2025-01-15")
	})

	AfterEach(func() {
		storetest.Close(db)
	})

	It("reports an overlapping booking", func() {
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-01-14"), day("2025-01-20"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeFalse())
		Expect(res.Conflicts).To(HaveLen(1))
		Expect(res.Conflicts[0].RequestNumber).To(Equal("TO-2025-0001"))
		Expect(res.Message).To(Equal("Vehicle is already assigned to 1 other request(s) during this period"))
	})

	It("treats the range ends as inclusive", func() {
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-01-15"), day("2025-01-16"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeFalse())
	})

	It("is free the day after the booking ends", func() {
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-01-16"), day("2025-01-20"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeTrue())
		Expect(res.Conflicts).To(BeEmpty())
	})

	It("excludes the request being edited", func() {
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-01-14"), day("2025-01-20"), "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeTrue())
	})

	It("ignores rejected and cancelled requests", func() {
		seedRequest("r2", "TO-2025-0002", "v1", "", "rejected", "2025-02-01", "2025-02-03")
		seedRequest("r3", "TO-2025-0003", "v1", "", "cancelled", "2025-02-01", "2025-02-03")
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-02-02"), day("2025-02-02"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeTrue())
	})

	It("rejects an inverted range", func() {
		_, err := checker.CheckVehicle(ctx, "v1", day("2025-01-20"), day("2025-01-14"), "")
		Expect(err).To(MatchError(availability.ErrInvalidRange))
	})

	It("reports suspended resources", func() {
		Expect(db.Model(&resource.Driver{}).Where("id = ?", "d1").Update("status", availability.StatusSuspended).Error).NotTo(HaveOccurred())
		res, err := checker.CheckDriver(ctx, "d1", day("2025-03-01"), day("2025-03-02"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeFalse())
		Expect(res.Reasons).To(ConsistOf("Driver is suspended"))
	})

	It("reports a coding day inside the range", func() {
		monday := 1
		Expect(db.Model(&resource.Vehicle{}).Where("id = ?", "v1").Update("coding_day", monday).Error).NotTo(HaveOccurred())
		// 2025-03-03 is a Monday
		res, err := checker.CheckVehicle(ctx, "v1", day("2025-03-01"), day("2025-03-04"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeFalse())
		Expect(res.Reasons).To(ConsistOf("Vehicle is under coding on Mon 2025-03-03"))

		res, err = checker.CheckVehicle(ctx, "v1", day("2025-03-04"), day("2025-03-08"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Available).To(BeTrue())
	})

	It("checks vehicle and driver together", func() {
		both, err := checker.CheckBoth(ctx, "v1", "d1", day("2025-01-12"), day("2025-01-13"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(both.BothAvailable).To(BeFalse())
		Expect(both.Vehicle.Available).To(BeFalse())
		Expect(both.Driver.Message).To(Equal("Driver is already assigned to 1 other request(s) during this period"))
	})

	It("treats a missing resource id as available", func() {
		both, err := checker.CheckBoth(ctx, "", "", day("2025-01-12"), day("2025-01-13"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(both.BothAvailable).To(BeTrue())
	})

	Context("when the read model fails", func() {
		It("fails open by default", func() {
			c := availability.NewChecker(failingRepo{}, logger.Discard(), internal.AvailabilityConfig{FailOpen: true})
			res, err := c.CheckVehicle(ctx, "v1", day("2025-01-14"), day("2025-01-20"), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Available).To(BeTrue())
			Expect(res.Degraded).To(BeTrue())
			Expect(res.Message).To(Equal("Error checking availability"))
		})

		It("reports upstream unavailable when fail-open is off", func() {
			c := availability.NewChecker(failingRepo{}, logger.Discard(), internal.AvailabilityConfig{FailOpen: false})
			_, err := c.CheckVehicle(ctx, "v1", day("2025-01-14"), day("2025-01-20"), "")
			Expect(internal.IsType(err, internal.ErrorTypeUpstream)).To(BeTrue())
		})
	})
})

var _ = Describe("Overlaps", func() {
	It("is inclusive on both ends", func() {
		Expect(availability.Overlaps(day("2025-01-10"), day("2025-01-15"), day("2025-01-15"), day("2025-01-20"))).To(BeTrue())
		Expect(availability.Overlaps(day("2025-01-10"), day("2025-01-15"), day("2025-01-16"), day("2025-01-20"))).To(BeFalse())
		Expect(availability.Overlaps(day("2025-01-12"), day("2025-01-12"), day("2025-01-10"), day("2025-01-15"))).To(BeTrue())
	})
})
