package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// RecipientResolver expands a role pool into user ids.
type RecipientResolver interface {
	HeadsOf(ctx context.Context, departmentID string) ([]string, error)
	ApproversFor(ctx context.Context, role workflow.Role) ([]string, error)
}

var eventNotificationType = map[string]string{
	events.EventTypeRequestSubmitted: TypeActionRequired,
	events.EventTypeRequestSigned:    TypeSigned,
	events.EventTypeRequestApproved:  TypeApproved,
	events.EventTypeRequestRejected:  TypeRejected,
	events.EventTypeRequestReturned:  TypeReturned,
	events.EventTypeRequestCancelled: TypeCancelled,
	events.EventTypeRequestCompleted: TypeCompleted,
	events.EventTypeRequestAssigned:  TypeAssigned,
}

// EventHandler turns request events into one notification per recipient.
type EventHandler struct {
	notifier Notifier
	resolver RecipientResolver
	logger   *slog.Logger
}

func NewEventHandler(notifier Notifier, resolver RecipientResolver, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		resolver: resolver,
		logger:   logger,
	}
}

func (h *EventHandler) HandleRequestEvent(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.RequestEvent)
	if !ok {
		return fmt.Errorf("expected RequestEvent, got %T", event)
	}

	userIDs, err := h.recipients(ctx, e.Recipients)
	if err != nil {
		return fmt.Errorf("resolve recipients for %s: %w", e.EventType(), err)
	}

	nType := eventNotificationType[e.EventType()]
	// approvals that forward the request ask the next pool to act
	if e.EventType() == events.EventTypeRequestApproved && workflow.Status(e.NewStatus).IsApprovalStage() {
		nType = TypeActionRequired
	}

	delivered := 0
	for _, id := range userIDs {
		if id == e.ActorID {
			continue
		}
		err := h.notifier.Notify(ctx, Notification{
			UserID:           id,
			Type:             nType,
			Title:            e.Title,
			Message:          e.Message,
			RelatedRequestID: e.RequestID,
		})
		if err != nil {
			h.logger.Warn("notification not queued",
				"request_id", e.RequestID,
				"user_id", id,
				"error", err)
			continue
		}
		delivered++
	}

	h.logger.Debug("request event fanned out",
		"event_type", e.EventType(),
		"request_id", e.RequestID,
		"recipients", delivered)
	return nil
}

func (h *EventHandler) recipients(ctx context.Context, r events.Recipients) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	add(r.UserIDs)
	if r.Role == "" {
		return out, nil
	}

	role := workflow.Role(r.Role)
	var ids []string
	var err error
	if role == workflow.RoleHead {
		ids, err = h.resolver.HeadsOf(ctx, r.DepartmentID)
	} else {
		ids, err = h.resolver.ApproversFor(ctx, role)
	}
	if err != nil {
		return nil, err
	}
	add(ids)
	return out, nil
}

func (h *EventHandler) RegisterEventHandlers(bus *events.EventBus) {
	bus.SubscribeAll(events.RequestEventTypes(), h.HandleRequestEvent)
	h.logger.Info("notification event handlers registered", "handlers", len(events.RequestEventTypes()))
}
