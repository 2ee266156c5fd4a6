package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/metrics"
)

const degradedMessage = "Error checking availability"

var ErrInvalidRange = internal.NewValidationFieldError("travel_end_date", "End date must not be before start date", internal.ErrCodeInvalidDateRange)

type Checker struct {
	repo     Repository
	logger   *slog.Logger
	failOpen bool
	timeout  time.Duration
}

func NewChecker(repo Repository, logger *slog.Logger, cfg internal.AvailabilityConfig) *Checker {
	return &Checker{
		repo:     repo,
		logger:   logger,
		failOpen: cfg.FailOpen,
		timeout:  cfg.QueryTimeout,
	}
}

func (c *Checker) CheckVehicle(ctx context.Context, vehicleID string, start, end time.Time, excludeRequestID string) (Result, error) {
	return c.Check(ctx, KindVehicle, vehicleID, start, end, excludeRequestID)
}

func (c *Checker) CheckDriver(ctx context.Context, driverID string, start, end time.Time, excludeRequestID string) (Result, error) {
	return c.Check(ctx, KindDriver, driverID, start, end, excludeRequestID)
}

// Check reports whether resourceID is free on every day of [start, end].
// An empty resource id is trivially available. When the lookup fails and
// fail-open is configured the result is available and marked degraded.
func (c *Checker) Check(ctx context.Context, kind Kind, resourceID string, start, end time.Time, excludeRequestID string) (Result, error) {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return Result{}, ErrInvalidRange
	}
	if resourceID == "" {
		return Result{Available: true, Conflicts: []Conflict{}}, nil
	}

	qctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.repo.OverlappingAssignments(qctx, kind, resourceID, start, end)
	if err != nil {
		return c.degrade(ctx, kind, resourceID, err)
	}

	conflicts := make([]Conflict, 0, len(rows))
	for _, row := range rows {
		if excludeRequestID != "" && row.RequestID == excludeRequestID {
			continue
		}
		if row.Status == "rejected" || row.Status == "cancelled" {
			continue
		}
		if !Overlaps(start, end, row.StartDate, row.EndDate) {
			continue
		}
		if row.RequestNumber == "" {
			row.RequestNumber = "N/A"
		}
		conflicts = append(conflicts, row)
	}

	res := Result{Available: len(conflicts) == 0, Conflicts: conflicts}
	if len(conflicts) > 0 {
		res.Message = fmt.Sprintf("%s is already assigned to %d other request(s) during this period", kind.label(), len(conflicts))
	}

	state, err := c.repo.ResourceState(qctx, kind, resourceID)
	if err != nil {
		c.logger.WarnContext(ctx, "resource status lookup failed", "kind", kind, "resource_id", resourceID, "error", err)
		return res, nil
	}
	if state != nil {
		res.Reasons = serviceReasons(kind, state, start, end)
		if len(res.Reasons) > 0 {
			res.Available = false
			if res.Message == "" {
				res.Message = res.Reasons[0]
			}
		}
	}
	return res, nil
}

func (c *Checker) degrade(ctx context.Context, kind Kind, resourceID string, err error) (Result, error) {
	if !c.failOpen {
		return Result{}, internal.NewUpstreamUnavailableError("availability lookup failed", internal.ErrCodePersistence, err)
	}
	metrics.RecordAvailabilityFailOpen(string(kind))
	c.logger.WarnContext(ctx, "availability check failed, assuming available",
		"kind", kind,
		"resource_id", resourceID,
		"error", err)
	return Result{Available: true, Conflicts: []Conflict{}, Message: degradedMessage, Degraded: true}, nil
}

// CheckBoth runs the vehicle and driver checks concurrently.
func (c *Checker) CheckBoth(ctx context.Context, vehicleID, driverID string, start, end time.Time, excludeRequestID string) (BothResult, error) {
	var (
		wg                 sync.WaitGroup
		vehicle, driver    Result
		vehicleErr, drvErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vehicle, vehicleErr = c.CheckVehicle(ctx, vehicleID, start, end, excludeRequestID)
	}()
	go func() {
		defer wg.Done()
		driver, drvErr = c.CheckDriver(ctx, driverID, start, end, excludeRequestID)
	}()
	wg.Wait()

	if vehicleErr != nil {
		return BothResult{}, vehicleErr
	}
	if drvErr != nil {
		return BothResult{}, drvErr
	}
	return BothResult{
		Vehicle:       vehicle,
		Driver:        driver,
		BothAvailable: vehicle.Available && driver.Available,
	}, nil
}

// Overlaps reports whether two inclusive date ranges share a day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !dateOnly(aStart).After(dateOnly(bEnd)) && !dateOnly(aEnd).Before(dateOnly(bStart))
}

func serviceReasons(kind Kind, state *ResourceState, start, end time.Time) []string {
	var reasons []string
	switch state.Status {
	case StatusSuspended:
		reasons = append(reasons, fmt.Sprintf("%s is suspended", kind.label()))
	case StatusOffDuty:
		reasons = append(reasons, fmt.Sprintf("%s is off duty", kind.label()))
	}
	if state.CodingDay != nil {
		if day, ok := codingDayHit(*state.CodingDay, start, end); ok {
			reasons = append(reasons, fmt.Sprintf("%s is under coding on %s", kind.label(), day.Format("Mon 2006-01-02")))
		}
	}
	return reasons
}

// codingDayHit returns the first day in [start, end] falling on weekday.
func codingDayHit(weekday int, start, end time.Time) (time.Time, bool) {
	if weekday < 0 || weekday > 6 {
		return time.Time{}, false
	}
	for d, i := start, 0; !d.After(end) && i < 7; d, i = d.AddDate(0, 0, 1), i+1 {
		if int(d.Weekday()) == weekday {
			return d, true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
