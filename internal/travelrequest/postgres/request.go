package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	requestDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/request"
	"github.com/frahmantamala/travel-approval/internal/store"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) travelrequest.Repository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *requestDatamodel.Request) error {
	return store.Unavailable("create request", store.GetDB(ctx, r.db).Create(req).Error)
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*requestDatamodel.Request, error) {
	var req requestDatamodel.Request
	err := store.GetDB(ctx, r.db).Where("id = ?", id).First(&req).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("get request", err)
	}
	return &req, nil
}

func (r *RequestRepository) GetForUpdate(ctx context.Context, id string) (*requestDatamodel.Request, error) {
	var req requestDatamodel.Request
	err := store.GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("lock request", err)
	}
	return &req, nil
}

// UpdateConditional writes every column of req, guarded by the status and
// version the caller read. Zero rows affected means someone else won.
func (r *RequestRepository) UpdateConditional(ctx context.Context, req *requestDatamodel.Request, expectedStatus string, expectedVersion int) (bool, error) {
	res := store.GetDB(ctx, r.db).
		Model(&requestDatamodel.Request{}).
		Where("id = ? AND status = ? AND version = ?", req.ID, expectedStatus, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(req)
	if res.Error != nil {
		return false, store.Unavailable("update request", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) InsertHistory(ctx context.Context, h *requestDatamodel.History) error {
	return store.Unavailable("insert request history", store.GetDB(ctx, r.db).Create(h).Error)
}

func (r *RequestRepository) ListHistory(ctx context.Context, requestID string) ([]*requestDatamodel.History, error) {
	var rows []*requestDatamodel.History
	err := store.GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, store.Unavailable("list request history", err)
}

func (r *RequestRepository) List(ctx context.Context, filter travelrequest.ListFilter) ([]*requestDatamodel.Request, error) {
	q := store.GetDB(ctx, r.db).Model(&requestDatamodel.Request{})
	if filter.OwnerID != "" {
		q = q.Where("requester_id = ? OR submitted_by_user_id = ?", filter.OwnerID, filter.OwnerID)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []*requestDatamodel.Request
	err := q.Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, store.Unavailable("list requests", err)
}

// NextNumber bumps the per-prefix, per-year counter. The update takes the
// row lock, so concurrent submissions inside transactions queue on it.
func (r *RequestRepository) NextNumber(ctx context.Context, prefix string, year int) (int, error) {
	db := store.GetDB(ctx, r.db)
	seed := &requestDatamodel.Sequence{Prefix: prefix, Year: year}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return 0, store.Unavailable("seed request sequence", err)
	}

	err := db.Model(&requestDatamodel.Sequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error
	if err != nil {
		return 0, store.Unavailable("bump request sequence", err)
	}

	var seq requestDatamodel.Sequence
	if err := db.Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error; err != nil {
		return 0, store.Unavailable("read request sequence", err)
	}
	return seq.LastValue, nil
}

func (r *RequestRepository) CountVehicleRequestsOn(ctx context.Context, day time.Time) (int64, error) {
	var n int64
	err := store.GetDB(ctx, r.db).
		Model(&requestDatamodel.Request{}).
		Where("DATE(travel_start_date) = DATE(?)", day.Format("2006-01-02")).
		Where("status NOT IN ?", []string{"rejected", "cancelled"}).
		Where("needs_vehicle = ? OR needs_rental = ?", true, true).
		Count(&n).Error
	return n, store.Unavailable("count vehicle requests", err)
}
