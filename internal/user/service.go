package user

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// ReminderPermission marks staff whose chat receives daily reminders.
const ReminderPermission = "receive_reminders"

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	ListWithPermission(ctx context.Context, permission string) ([]*User, error)
	Create(ctx context.Context, u *User, permissions []string) (*User, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// ListReminderRecipients returns the distinct chat ids of active staff holding the reminder permission.
func (s *Service) ListReminderRecipients(ctx context.Context) ([]string, error) {
	users, err := s.repo.ListWithPermission(ctx, ReminderPermission)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder recipients: %w", err)
	}

	seen := make(map[string]struct{}, len(users))
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if !u.ReceivesReminders(ReminderPermission) {
			continue
		}
		if _, dup := seen[u.ChatID]; dup {
			continue
		}
		seen[u.ChatID] = struct{}{}
		recipients = append(recipients, u.ChatID)
	}
	sort.Strings(recipients)

	s.logger.Debug("loaded reminder recipients", "count", len(recipients))
	return recipients, nil
}

// Register stores a new staff user; the password must already be hashed.
func (s *Service) Register(ctx context.Context, u *User, permissions []string) (*User, error) {
	created, err := s.repo.Create(ctx, u, permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", u.Email, err)
	}
	s.logger.Info("user registered", "user_id", created.ID, "permissions", permissions)
	return created, nil
}
