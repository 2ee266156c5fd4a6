package user

import (
	"context"
	"log/slog"

	userDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Repository returns nil, nil for missing rows.
type Repository interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	GetAdmin(ctx context.Context, userID string) (*userDatamodel.Admin, error)
	ListHeads(ctx context.Context, departmentID string) ([]*userDatamodel.User, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]*userDatamodel.User, error)
}

// Service is the identity directory: users, their role flags and the
// approver pools the workflow routes to.
type Service struct {
	repo     Repository
	resolver *rbac.Resolver
	logger   *slog.Logger
}

func NewService(repo Repository, resolver *rbac.Resolver, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		logger:   logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return s.withAdmin(ctx, row)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return s.withAdmin(ctx, row)
}

func (s *Service) withAdmin(ctx context.Context, row *userDatamodel.User) (*User, error) {
	var admin *userDatamodel.Admin
	if row.IsAdmin {
		a, err := s.repo.GetAdmin(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		admin = a
	}
	return FromDataModel(row, admin), nil
}

// Actor resolves the user behind id into an authenticated actor.
func (s *Service) Actor(ctx context.Context, id string) (*rbac.Actor, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ActorFor(u), nil
}

func (s *Service) ActorFor(u *User) *rbac.Actor {
	flags := u.Flags()
	return &rbac.Actor{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		DepartmentID: u.DepartmentID,
		Position:     u.Position,
		Flags:        flags,
		Caps:         s.resolver.Resolve(u.ID, u.Email, &flags),
	}
}

// HeadsOf returns the ids of the department's active heads.
func (s *Service) HeadsOf(ctx context.Context, departmentID string) ([]string, error) {
	if departmentID == "" {
		return nil, nil
	}
	rows, err := s.repo.ListHeads(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

// ApproversFor returns the ids of active users holding role.
func (s *Service) ApproversFor(ctx context.Context, role workflow.Role) ([]string, error) {
	rows, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

func (s *Service) Profile(ctx context.Context, id string) (*ProfileResponse, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := s.ActorFor(u)
	return &ProfileResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		DepartmentID: u.DepartmentID,
		Position:     u.Position,
		Roles:        actor.Caps.Roles(),
		SuperAdmin:   actor.IsSuperAdmin(),
	}, nil
}

func ids(rows []*userDatamodel.User) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
