package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal/auth"
	userDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/travel-approval/internal/store"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) lookup(ctx context.Context, query string, arg string) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := store.GetDB(ctx, r.db).
		Select("id", "email", "password_hash", "status").
		Where(query, arg).
		First(&u).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Unavailable("load credentials", err)
	}
	return &auth.Credentials{
		UserID:       u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Active:       u.Status == "active",
	}, nil
}

func (r *Repository) GetCredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	return r.lookup(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *Repository) GetCredentialsByID(ctx context.Context, userID string) (*auth.Credentials, error) {
	return r.lookup(ctx, "id = ?", userID)
}
