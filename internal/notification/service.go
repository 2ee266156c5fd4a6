package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	notificationDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/notification"
)

const defaultInboxLimit = 50

// Service owns the persisted inbox. It is also the first sink of the
// dispatcher, so every delivered notification has an inbox row.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Name() string { return "inbox" }

func (s *Service) Deliver(ctx context.Context, n *Notification) error {
	row := &notificationDatamodel.Notification{
		ID:               uuid.NewString(),
		UserID:           n.UserID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		RelatedRequestID: n.RelatedRequestID,
		CreatedAt:        n.CreatedAt,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return err
	}
	n.ID = row.ID
	return nil
}

func (s *Service) Inbox(ctx context.Context, userID string, unreadOnly bool, limit int) (*InboxResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultInboxLimit
	}
	rows, err := s.repo.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &InboxResponse{Notifications: make([]Notification, 0, len(rows)), Unread: unread}
	for _, r := range rows {
		out.Notifications = append(out.Notifications, FromDataModel(r))
	}
	return out, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}
