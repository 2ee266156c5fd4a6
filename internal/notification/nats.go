package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// Message is the JSON published for downstream consumers such as an
// e-mail or push service.
type Message struct {
	EventType    string   `json:"event_type"`
	Recipients   []string `json:"recipients"`
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id,omitempty"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Category     string   `json:"category"`
	InboxID      string   `json:"inbox_id,omitempty"`
}

// Notifications expands a message back into one notification per recipient.
func (m Message) Notifications() []Notification {
	out := make([]Notification, 0, len(m.Recipients))
	for _, userID := range m.Recipients {
		out = append(out, Notification{
			ID:               m.InboxID,
			UserID:           userID,
			Type:             m.EventType,
			Title:            m.Title,
			Message:          m.Body,
			RelatedRequestID: m.ResourceID,
		})
	}
	return out
}

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every notification on <prefix>.<type>.
type NATSSink struct {
	conn   Publisher
	prefix string
	logger *slog.Logger
}

func NewNATSSink(conn Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = "notifications.travel"
	}
	return &NATSSink{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("travel-approval"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(notificationType string) string {
	return s.prefix + "." + notificationType
}

func (s *NATSSink) Deliver(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		EventType:    n.Type,
		Recipients:   []string{n.UserID},
		ResourceType: "travel_request",
		ResourceID:   n.RelatedRequestID,
		Title:        n.Title,
		Body:         n.Message,
		Category:     "travel_approval",
		InboxID:      n.ID,
	})
	if err != nil {
		return err
	}
	subject := s.Subject(n.Type)
	if err := s.conn.Publish(subject, data); err != nil {
		return err
	}
	s.logger.Debug("notification published", "subject", subject, "user_id", n.UserID)
	return nil
}
