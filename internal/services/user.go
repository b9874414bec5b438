package services

import (
	"context"
	"errors"
	"strings"

	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/types"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRole(ctx context.Context, username, role string) error
	SetActive(ctx context.Context, username string, active bool) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Create stores a new, active user with the default role unless one is set.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, err := s.repo.GetByUsername(ctx, user.Username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	if strings.TrimSpace(user.Role) == "" {
		user.Role = types.RoleUser
	}
	user.IsActive = true
	return s.repo.Create(ctx, user)
}

// SetRole assigns one of the known roles to the named user.
func (s *UserService) SetRole(ctx context.Context, username, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case types.RoleAdmin, types.RoleStaff, types.RoleUser:
	default:
		return &ValidationError{Fields: map[string]string{"role": "oneof=admin staff user"}}
	}
	return s.repo.SetRole(ctx, username, role)
}

// SetActive enables or disables the named user. Disabled users keep their
// data but are refused at login and on every authenticated request.
func (s *UserService) SetActive(ctx context.Context, username string, active bool) error {
	return s.repo.SetActive(ctx, username, active)
}
