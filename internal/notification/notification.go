package notification

import (
	"context"
	"time"

	"github.com/frahmantamala/travel-approval/internal"
	notificationDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/notification"
)

// Notification types shown in the inbox.
const (
	TypeActionRequired = "action_required"
	TypeApproved       = "request_approved"
	TypeRejected       = "request_rejected"
	TypeReturned       = "request_returned"
	TypeCancelled      = "request_cancelled"
	TypeCompleted      = "request_completed"
	TypeAssigned       = "resources_assigned"
	TypeSigned         = "request_signed"
)

type Notification struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Type             string     `json:"type"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	RelatedRequestID string     `json:"related_request_id,omitempty"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Notifier accepts a notification for best-effort delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Sink is one delivery channel. Sinks run in registration order for each
// notification, so the inbox sink assigns the id later sinks publish.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// Repository is the inbox store.
type Repository interface {
	Create(ctx context.Context, n *notificationDatamodel.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*notificationDatamodel.Notification, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

var (
	ErrQueueFull = internal.NewUpstreamUnavailableError("Notification queue is full", internal.ErrCodeNotification, nil)
	ErrNotFound  = internal.NewNotFoundError("Notification not found", internal.ErrCodeResourceNotFound)
)

func FromDataModel(n *notificationDatamodel.Notification) Notification {
	return Notification{
		ID:               n.ID,
		UserID:           n.UserID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		RelatedRequestID: n.RelatedRequestID,
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	}
}

// InboxResponse is the GET /notifications payload.
type InboxResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int64          `json:"unread"`
}
