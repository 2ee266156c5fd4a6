package availability

import (
	"context"
	"time"
)

type Kind string

const (
	KindVehicle Kind = "vehicle"
	KindDriver  Kind = "driver"
)

func (k Kind) label() string {
	if k == KindDriver {
		return "Driver"
	}
	return "Vehicle"
}

// Resource statuses that take a vehicle or driver out of service.
const (
	StatusAvailable = "available"
	StatusOnTrip    = "on_trip"
	StatusOffDuty   = "off_duty"
	StatusSuspended = "suspended"
)

// Conflict is another request holding the resource inside the range.
type Conflict struct {
	RequestID     string    `json:"request_id" db:"id"`
	RequestNumber string    `json:"request_number" db:"request_number"`
	StartDate     time.Time `json:"start_date" db:"travel_start_date"`
	EndDate       time.Time `json:"end_date" db:"travel_end_date"`
	Status        string    `json:"status" db:"status"`
}

// ResourceState is the service status of a vehicle or driver.
type ResourceState struct {
	ID        string `db:"id"`
	Status    string `db:"status"`
	CodingDay *int   `db:"coding_day"`
}

type Result struct {
	Available bool       `json:"available"`
	Conflicts []Conflict `json:"conflicts"`
	// Reasons lists non-booking blockers such as a suspended vehicle.
	Reasons []string `json:"reasons,omitempty"`
	Message string   `json:"message,omitempty"`
	// Degraded is set when the lookup failed and the result was assumed.
	Degraded bool `json:"degraded,omitempty"`
}

type BothResult struct {
	Vehicle       Result `json:"vehicle"`
	Driver        Result `json:"driver"`
	BothAvailable bool   `json:"both_available"`
}

// Repository is the read model over request assignments.
type Repository interface {
	// OverlappingAssignments returns non-rejected, non-cancelled requests
	// holding resourceID on any day of [start, end], both ends inclusive.
	OverlappingAssignments(ctx context.Context, kind Kind, resourceID string, start, end time.Time) ([]Conflict, error)
	// ResourceState returns nil when the resource does not exist.
	ResourceState(ctx context.Context, kind Kind, resourceID string) (*ResourceState, error)
}
