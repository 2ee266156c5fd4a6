package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
)

type InboxAPI interface {
	Inbox(ctx context.Context, userID string, unreadOnly bool, limit int) (*InboxResponse, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  InboxAPI
	Hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(baseHandler *transport.BaseHandler, svc InboxAPI, hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
		Hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*rbac.Actor, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken))
		return nil, false
	}
	return actor, true
}

// GetInbox handles GET /notifications?unread=true&limit=50
func (h *Handler) GetInbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	inbox, err := h.Service.Inbox(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, inbox)
}

// MarkRead handles POST /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), chi.URLParam(r, "id"), actor.ID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	n, err := h.Service.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// ServeWS handles GET /notifications/ws and upgrades to a push channel.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.Logger.Warn("websocket upgrade failed", "user_id", actor.ID, "error", err)
		return
	}
	h.Hub.Attach(actor.ID, conn)
}
