package reporting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/academix-erp/academix/internal/accounting"
	"github.com/academix-erp/academix/internal/platform/cache"
)

// LedgerPort is the read-only statement contract the ledger exposes.
type LedgerPort interface {
	AccountStatement(ctx context.Context, accountID int64, from, to time.Time) ([]accounting.StatementRow, error)
}

// Service serves statement read models. Responses are cached in Redis behind
// a version counter and concurrent cache misses for the same statement are
// collapsed through singleflight so the ledger only sees one query.
type Service struct {
	ledger LedgerPort
	cache  *cache.Cache
	group  singleflight.Group
}

// NewService constructs the reporting service.
func NewService(ledger LedgerPort, c *cache.Cache) *Service {
	return &Service{ledger: ledger, cache: c}
}

// Statement returns the account statement rows for the range.
func (s *Service) Statement(ctx context.Context, accountID int64, from, to time.Time) ([]accounting.StatementRow, error) {
	key, err := s.cache.BuildKey(ctx, "reporting", "statement",
		fmt.Sprintf("%d", accountID), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		var rows []accounting.StatementRow
		err := s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
			return s.ledger.AccountStatement(ctx, accountID, from, to)
		})
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	rows, _ := value.([]accounting.StatementRow)
	return rows, nil
}

// Invalidate bumps the cache version, expiring every cached statement at once.
// Call it after any posting or void.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
