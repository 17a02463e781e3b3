package account

import (
	"context"
	"log/slog"
)

// Repository is the part of the store the account service needs.
type Repository interface {
	User(ctx context.Context, id string) (User, error)
	Subscriptions(ctx context.Context, userID string) ([]Subscription, error)
	UpdateAutoRenew(ctx context.Context, userID, subscriptionID string, autoRenew bool) (Subscription, error)
}

// Service exposes a user's balances and subscription book.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds an account service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the user with current balances.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	return s.repo.User(ctx, userID)
}

// Subscriptions lists the user's subscriptions, oldest purchase first.
func (s *Service) Subscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	if _, err := s.repo.User(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Subscriptions(ctx, userID)
}

// SetAutoRenew toggles auto-renewal on one of the user's subscriptions.
func (s *Service) SetAutoRenew(ctx context.Context, userID, subscriptionID string, autoRenew bool) (Subscription, error) {
	sub, err := s.repo.UpdateAutoRenew(ctx, userID, subscriptionID, autoRenew)
	if err != nil {
		return Subscription{}, err
	}
	s.logger.Info("subscription auto-renew updated",
		slog.String("user_id", userID),
		slog.String("subscription_id", subscriptionID),
		slog.Bool("auto_renew", autoRenew),
	)
	return sub, nil
}
