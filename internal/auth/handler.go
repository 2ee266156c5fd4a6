package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Actors  ActorLoader
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, actors ActorLoader) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
		Actors:      actors,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// RefreshToken handles POST /auth/refresh
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. Tokens are stateless so this only checks the bearer.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, r, internal.NewUnauthorizedError("Missing authorization token", internal.ErrCodeInvalidToken))
		return
	}

	if _, err := h.Service.ValidateAccessToken(token); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware resolves the bearer token into an rbac.Actor on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, r, internal.NewUnauthorizedError("Missing authorization token", internal.ErrCodeInvalidToken))
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		actor, err := h.Actors.Actor(r.Context(), claims.UserID)
		if err != nil {
			if internal.IsType(err, internal.ErrorTypeNotFound) {
				err = internal.ErrInvalidToken
			}
			h.WriteAppError(w, r, err)
			return
		}

		ctx := rbac.WithActor(r.Context(), actor)
		ctx = internal.ContextWithUserID(ctx, actor.ID)
		ctx = logger.With(ctx, "user_id", actor.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
