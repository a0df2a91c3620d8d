package accounting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/academix-erp/academix/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations executed inside one transaction.
type TxRepository interface {
	InsertJournal(ctx context.Context, in DraftInput, status JournalStatus) (Journal, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []LineInput) error
	DeleteJournalLines(ctx context.Context, journalID int64) error
	GetJournalForUpdate(ctx context.Context, journalID int64) (Journal, error)
	GetJournalWithLines(ctx context.Context, journalID int64) (Journal, []JournalLine, error)
	MarkJournalPosted(ctx context.Context, journalID int64, postedBy int64, postedAt time.Time) error
	UpdateJournalStatus(ctx context.Context, journalID int64, status JournalStatus) error
	UpdateJournalHeader(ctx context.Context, journalID int64, in DraftInput) error
	DeleteJournal(ctx context.Context, journalID int64) error
	GetAccounts(ctx context.Context, ids []int64) ([]Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListCostCenters(ctx context.Context) ([]CostCenter, error)
	AccountStatement(ctx context.Context, accountID int64, from, to time.Time) ([]StatementRow, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatementInvalidator expires cached statement reads after a ledger write.
type StatementInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates draft creation, posting, and voiding of journals.
// Posted journals are immutable: every write path loads the persisted status
// inside the transaction and rejects changes to POSTED records.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator StatementInvalidator
	now         func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetStatementInvalidator registers the hook called after Post and Void.
func (s *Service) SetStatementInvalidator(inv StatementInvalidator) {
	s.invalidator = inv
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	// Best effort. A failed bump only means stale reads until the TTL fires.
	_ = s.invalidator.Invalidate(ctx)
}

// CreateDraft validates and persists a new draft journal.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.ensureActiveAccounts(ctx, tx, input.Lines); err != nil {
			return err
		}
		inserted, err := tx.InsertJournal(ctx, input, JournalStatusDraft)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		inserted.Lines = toJournalLines(inserted.ID, input.Lines, s.now())
		journal = inserted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	return journal, nil
}

// Post finalises a draft journal. The line sums are recomputed from the
// persisted lines; a difference beyond tolerance rejects the posting.
func (s *Service) Post(ctx context.Context, input PostInput) (Journal, error) {
	if input.JournalID == 0 {
		return Journal{}, errors.New("accounting: journal id required")
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusPosted:
			return ErrImmutablePosted
		case JournalStatusVoid:
			return ErrInvalidStatus
		}
		loaded, lines, err := tx.GetJournalWithLines(ctx, input.JournalID)
		if err != nil {
			return err
		}
		debit, credit := sumLineAmounts(lines)
		if math.Abs(debit-credit) >= BalanceTolerance {
			return ErrUnbalanced
		}
		if err := s.ensureActiveLineAccounts(ctx, tx, lines); err != nil {
			return err
		}
		postedAt := s.now()
		if err := tx.MarkJournalPosted(ctx, input.JournalID, input.ActorID, postedAt); err != nil {
			return err
		}
		journal = loaded
		journal.Status = JournalStatusPosted
		journal.PostedAt = &postedAt
		journal.PostedBy = &input.ActorID
		journal.Lines = lines
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, input.ActorID, "journal.post", journal.ID, map[string]any{
		"reference":      journal.Reference,
		"reference_type": journal.ReferenceType,
	})
	return journal, nil
}

// Void flips a posted journal to VOID. It never deletes lines. This is not
// exposed over HTTP: the only sanctioned caller is voucher cancellation.
func (s *Service) Void(ctx context.Context, input VoidInput) (Journal, error) {
	if input.JournalID == 0 {
		return Journal{}, errors.New("accounting: journal id required")
	}
	var journal Journal
	var lines []JournalLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusPosted {
			return ErrInvalidStatus
		}
		loaded, currLines, err := tx.GetJournalWithLines(ctx, input.JournalID)
		if err != nil {
			return err
		}
		if err := tx.UpdateJournalStatus(ctx, input.JournalID, JournalStatusVoid); err != nil {
			return err
		}
		journal = loaded
		journal.Status = JournalStatusVoid
		lines = currLines
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	journal.Lines = lines
	s.invalidate(ctx)
	s.record(ctx, input.ActorID, "journal.void", journal.ID, map[string]any{
		"reason": input.Reason,
	})
	return journal, nil
}

// UpdateDraft replaces the header and lines of a draft journal.
func (s *Service) UpdateDraft(ctx context.Context, journalID int64, input DraftInput) (Journal, error) {
	if journalID == 0 {
		return Journal{}, errors.New("accounting: journal id required")
	}
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, journalID)
		if err != nil {
			return err
		}
		if current.Status == JournalStatusPosted {
			return ErrImmutablePosted
		}
		if current.Status == JournalStatusVoid {
			return ErrInvalidStatus
		}
		if err := s.ensureActiveAccounts(ctx, tx, input.Lines); err != nil {
			return err
		}
		if err := tx.UpdateJournalHeader(ctx, journalID, input); err != nil {
			return err
		}
		if err := tx.DeleteJournalLines(ctx, journalID); err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, journalID, input.Lines); err != nil {
			return err
		}
		journal = current
		journal.Reference = input.Reference
		journal.ReferenceType = input.ReferenceType
		journal.ReferenceID = input.ReferenceID
		journal.Date = input.Date
		journal.BranchID = input.BranchID
		journal.Lines = toJournalLines(journalID, input.Lines, s.now())
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	return journal, nil
}

// DeleteDraft removes a draft journal and its lines.
func (s *Service) DeleteDraft(ctx context.Context, journalID int64) error {
	if journalID == 0 {
		return errors.New("accounting: journal id required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, journalID)
		if err != nil {
			return err
		}
		if current.Status == JournalStatusPosted {
			return ErrImmutablePosted
		}
		if err := tx.DeleteJournalLines(ctx, journalID); err != nil {
			return err
		}
		return tx.DeleteJournal(ctx, journalID)
	})
}

// GetJournal loads a journal with its lines.
func (s *Service) GetJournal(ctx context.Context, journalID int64) (Journal, error) {
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, lines, err := tx.GetJournalWithLines(ctx, journalID)
		if err != nil {
			return err
		}
		loaded.Lines = lines
		journal = loaded
		return nil
	})
	return journal, err
}

// AccountTree returns the chart of accounts as root nodes.
func (s *Service) AccountTree(ctx context.Context) ([]*AccountNode, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return BuildAccountTree(accounts)
}

// CostCenterTree returns cost centers as root nodes.
func (s *Service) CostCenterTree(ctx context.Context) ([]*CostCenterNode, error) {
	var centers []CostCenter
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		centers, err = tx.ListCostCenters(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return BuildCostCenterTree(centers)
}

// AccountStatement returns posted movements for an account with a running
// balance seeded from the opening balance. Read-only, no locks.
func (s *Service) AccountStatement(ctx context.Context, accountID int64, from, to time.Time) ([]StatementRow, error) {
	var rows []StatementRow
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.AccountStatement(ctx, accountID, from, to)
		return err
	})
	return rows, err
}

func (s *Service) ensureActiveAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	return s.checkAccounts(ctx, tx, ids)
}

func (s *Service) ensureActiveLineAccounts(ctx context.Context, tx TxRepository, lines []JournalLine) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	return s.checkAccounts(ctx, tx, ids)
}

func (s *Service) checkAccounts(ctx context.Context, tx TxRepository, ids []int64) error {
	accounts, err := tx.GetAccounts(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for _, id := range ids {
		account, ok := byID[id]
		if !ok {
			return ErrAccountNotFound
		}
		if !account.IsActive {
			return ErrAccountInactive
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, journalID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", journalID),
		Meta:     meta,
		At:       s.now(),
	})
}

func toJournalLines(journalID int64, lines []LineInput, ts time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID:    journalID,
			AccountID:    line.AccountID,
			CostCenterID: line.CostCenterID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		})
	}
	return out
}
