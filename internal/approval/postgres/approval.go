package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/store"
)

type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) approval.Repository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) Create(ctx context.Context, rows []*approval.Approval) error {
	if len(rows) == 0 {
		return nil
	}
	return store.Unavailable("create approvals", store.GetDB(ctx, r.db).Create(&rows).Error)
}

func (r *ApprovalRepository) ListByStep(ctx context.Context, requestID string, step approval.Step) ([]*approval.Approval, error) {
	var rows []*approval.Approval
	err := store.GetDB(ctx, r.db).
		Where("request_id = ? AND step = ?", requestID, string(step)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, store.Unavailable("list approvals", err)
}

func (r *ApprovalRepository) ListByRequest(ctx context.Context, requestID string) ([]*approval.Approval, error) {
	var rows []*approval.Approval
	err := store.GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, store.Unavailable("list approvals", err)
}

func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*approval.Approval, error) {
	var rows []*approval.Approval
	err := store.GetDB(ctx, r.db).
		Where("approver_id = ? AND action = ?", approverID, string(approval.ActionPending)).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, store.Unavailable("list pending approvals", err)
}

// Transition moves a row from one action to another only if it is still in from.
func (r *ApprovalRepository) Transition(ctx context.Context, id string, from, to approval.Action, signature, reason string, at time.Time) (bool, error) {
	res := store.GetDB(ctx, r.db).
		Model(&approval.Approval{}).
		Where("id = ? AND action = ?", id, string(from)).
		Updates(map[string]interface{}{
			"action":    string(to),
			"signature": signature,
			"reason":    reason,
			"acted_at":  at,
		})
	if res.Error != nil {
		return false, store.Unavailable("update approval", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// LockPending locks pending rows of the request; an empty step means every step.
func (r *ApprovalRepository) LockPending(ctx context.Context, requestID string, step approval.Step, exceptID string, at time.Time) (int64, error) {
	q := store.GetDB(ctx, r.db).
		Model(&approval.Approval{}).
		Where("request_id = ? AND action = ?", requestID, string(approval.ActionPending))
	if step != "" {
		q = q.Where("step = ?", string(step))
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	res := q.Updates(map[string]interface{}{
		"action":   string(approval.ActionLocked),
		"acted_at": at,
	})
	if res.Error != nil {
		return 0, store.Unavailable("lock approvals", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteStep drops the rows of a step so it can be opened again after a return.
func (r *ApprovalRepository) DeleteStep(ctx context.Context, requestID string, step approval.Step) error {
	err := store.GetDB(ctx, r.db).
		Where("request_id = ? AND step = ?", requestID, string(step)).
		Delete(&approval.Approval{}).Error
	return store.Unavailable("delete approvals", err)
}

func (r *ApprovalRepository) CreateInvitation(ctx context.Context, inv *approval.Invitation) error {
	return store.Unavailable("create invitation", store.GetDB(ctx, r.db).Create(inv).Error)
}

func (r *ApprovalRepository) GetInvitationByToken(ctx context.Context, token string) (*approval.Invitation, error) {
	var inv approval.Invitation
	err := store.GetDB(ctx, r.db).Where("token = ?", token).First(&inv).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("get invitation", err)
	}
	return &inv, nil
}

func (r *ApprovalRepository) ListInvitations(ctx context.Context, requestID string, kind approval.InvitationKind) ([]*approval.Invitation, error) {
	var invs []*approval.Invitation
	q := store.GetDB(ctx, r.db).Where("request_id = ?", requestID)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	err := q.Order("created_at ASC").Find(&invs).Error
	return invs, store.Unavailable("list invitations", err)
}

func (r *ApprovalRepository) RespondInvitation(ctx context.Context, id string, status approval.InvitationStatus, at time.Time) (bool, error) {
	res := store.GetDB(ctx, r.db).
		Model(&approval.Invitation{}).
		Where("id = ? AND status = ?", id, string(approval.InvitationPending)).
		Updates(map[string]interface{}{
			"status":       string(status),
			"responded_at": at,
		})
	if res.Error != nil {
		return false, store.Unavailable("update invitation", res.Error)
	}
	return res.RowsAffected == 1, nil
}
