package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/travel-approval/internal"
)

// Reauthenticator confirms a signed-in user's password before sensitive actions.
type Reauthenticator struct {
	repo    CredentialRepository
	timeout time.Duration
	logger  *slog.Logger
}

func NewReauthenticator(repo CredentialRepository, timeout time.Duration, logger *slog.Logger) *Reauthenticator {
	return &Reauthenticator{
		repo:    repo,
		timeout: timeout,
		logger:  logger,
	}
}

// Verify returns ErrInvalidCredentials on a wrong password and an upstream
// error when the identity store cannot answer in time.
func (r *Reauthenticator) Verify(ctx context.Context, userID, password string) error {
	if password == "" {
		return internal.NewUnauthorizedError("Password confirmation is required", internal.ErrCodeReauthRequired)
	}

	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		creds, err := r.repo.GetCredentialsByID(ctx, userID)
		if err != nil {
			done <- internal.NewUpstreamUnavailableError("identity store unavailable", internal.ErrCodeIdentity, err)
			return
		}
		if creds == nil || !creds.Active {
			done <- internal.ErrInvalidCredentials
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
			done <- internal.ErrInvalidCredentials
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil && !internal.IsType(err, internal.ErrorTypeUnauthorized) {
			r.logger.Warn("reauthentication unavailable", "user_id", userID, "error", err)
		}
		return err
	case <-ctx.Done():
		r.logger.Warn("reauthentication timed out", "user_id", userID)
		return internal.NewUpstreamUnavailableError("identity verification timed out", internal.ErrCodeIdentity, ctx.Err())
	}
}
