package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/travel-approval/internal/availability"
)

const dateLayout = "2006-01-02"

// AvailabilityRepository reads assignments with sqlx; it never writes.
type AvailabilityRepository struct {
	db *sqlx.DB
}

func NewAvailabilityRepository(db *sqlx.DB) availability.Repository {
	return &AvailabilityRepository{db: db}
}

func assignmentColumn(kind availability.Kind) (string, error) {
	switch kind {
	case availability.KindVehicle:
		return "assigned_vehicle_id", nil
	case availability.KindDriver:
		return "assigned_driver_id", nil
	}
	return "", fmt.Errorf("unknown resource kind %q", kind)
}

func resourceTable(kind availability.Kind) (string, error) {
	switch kind {
	case availability.KindVehicle:
		return "vehicles", nil
	case availability.KindDriver:
		return "drivers", nil
	}
	return "", fmt.Errorf("unknown resource kind %q", kind)
}

func (r *AvailabilityRepository) OverlappingAssignments(ctx context.Context, kind availability.Kind, resourceID string, start, end time.Time) ([]availability.Conflict, error) {
	col, err := assignmentColumn(kind)
	if err != nil {
		return nil, err
	}
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, request_number, travel_start_date, travel_end_date, status
		FROM requests
		WHERE %s = ?
		  AND status NOT IN ('rejected', 'cancelled')
		  AND DATE(travel_start_date) <= DATE(?)
		  AND DATE(travel_end_date) >= DATE(?)
		ORDER BY travel_start_date ASC`, col))

	var rows []availability.Conflict
	if err := r.db.SelectContext(ctx, &rows, query, resourceID, end.Format(dateLayout), start.Format(dateLayout)); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepository) ResourceState(ctx context.Context, kind availability.Kind, resourceID string) (*availability.ResourceState, error) {
	table, err := resourceTable(kind)
	if err != nil {
		return nil, err
	}
	query := r.db.Rebind(fmt.Sprintf(`SELECT id, status, coding_day FROM %s WHERE id = ?`, table))

	var state availability.ResourceState
	if err := r.db.GetContext(ctx, &state, query, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}
