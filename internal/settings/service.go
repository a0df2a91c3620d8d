package settings

import (
	"context"
	"fmt"
)

// RepositoryPort reads the settings table and resolves account codes.
type RepositoryPort interface {
	// GetValue returns the raw value for a key, or "" when absent.
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	// ActiveAccountIDByCode returns the account id for an active account
	// with the given code, or 0 when no such account exists.
	ActiveAccountIDByCode(ctx context.Context, code string) (int64, error)
}

// Service is the configuration boundary for the billing flow. It never caches:
// a stale default account silently misposts money.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the settings service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the raw value for a key.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.repo.GetValue(ctx, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: key %q", ErrConfigurationMissing, key)
	}
	return value, nil
}

// Set stores a key/value pair.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrConfigurationMissing)
	}
	return s.repo.SetValue(ctx, key, value)
}

// DefaultAccounts resolves the configured default account codes into live
// account ids. Any missing key, or a code pointing at a missing or inactive
// account, fails the whole lookup.
func (s *Service) DefaultAccounts(ctx context.Context) (DefaultAccounts, error) {
	cash, err := s.accountForKey(ctx, KeyDefaultCashAccount)
	if err != nil {
		return DefaultAccounts{}, err
	}
	ar, err := s.accountForKey(ctx, KeyDefaultARAccount)
	if err != nil {
		return DefaultAccounts{}, err
	}
	revenue, err := s.accountForKey(ctx, KeyDefaultRevenueAccount)
	if err != nil {
		return DefaultAccounts{}, err
	}
	return DefaultAccounts{CashAccountID: cash, ARAccountID: ar, RevenueAccountID: revenue}, nil
}

func (s *Service) accountForKey(ctx context.Context, key string) (int64, error) {
	code, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.ActiveAccountIDByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: account %q for key %q absent or inactive", ErrConfigurationMissing, code, key)
	}
	return id, nil
}
