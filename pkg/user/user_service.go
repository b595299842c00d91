package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service interface {
	GetCurrentUser(ctx context.Context) (User, error)
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateCurrentUser(ctx context.Context, user User) (User, error)
}

type ServiceImpl struct {
	repo Repo
}

func NewUserService(repo Repo) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetUser(ctx, userId)
}

func (s *ServiceImpl) GetUser(ctx context.Context, id int) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *ServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return s.repo.GetUserByUid(ctx, uid)
}

func (s *ServiceImpl) CreateUser(ctx context.Context, u User) (User, error) {
	if err := validateSettings(u.Settings); err != nil {
		return User{}, err
	}
	if u.Uid == "" {
		u.Uid = uuid.NewString()
	}
	if u.Settings.Timezone == "" {
		u.Settings.Timezone = "UTC"
	}
	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	u.Id = id
	return u, nil
}

// UpdateCurrentUser replaces display name and settings of the user bound to ctx.
func (s *ServiceImpl) UpdateCurrentUser(ctx context.Context, u User) (User, error) {
	current, err := CurrentUser(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateSettings(u.Settings); err != nil {
		return User{}, err
	}
	current.DisplayName = u.DisplayName
	current.Settings = u.Settings
	return s.repo.UpdateUser(ctx, current)
}

func validateSettings(settings Settings) error {
	if settings.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrUserDataInvalid, settings.Timezone)
	}
	return nil
}
