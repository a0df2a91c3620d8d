package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/academix-erp/academix/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations executed inside one transaction. Journal
// rows live in the ledger tables; writing them here keeps voucher posting
// atomic with the voucher status change.
type TxRepository interface {
	// NextSequenceNumber locks the per-type counter row exclusively,
	// creating it at zero when absent, increments it and returns the value.
	NextSequenceNumber(ctx context.Context, t VoucherType) (int64, error)
	InsertVoucher(ctx context.Context, in DraftInput, number string) (Voucher, error)
	InsertVoucherLines(ctx context.Context, voucherID int64, lines []LineInput) error
	GetVoucherForUpdate(ctx context.Context, voucherID int64) (Voucher, error)
	GetVoucherWithLines(ctx context.Context, voucherID int64) (Voucher, []VoucherLine, error)
	MarkVoucherPosted(ctx context.Context, voucherID, journalID, approvedBy int64, approvedAt time.Time) error
	MarkVoucherCancelled(ctx context.Context, voucherID int64) error
	// InsertPostedJournal writes the mirroring journal header and lines in
	// POSTED status and returns the journal id.
	InsertPostedJournal(ctx context.Context, v Voucher, lines []VoucherLine, postedBy int64, postedAt time.Time) (int64, error)
	MarkJournalVoid(ctx context.Context, journalID int64) error
}

// AuditPort records voucher events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatementInvalidator expires cached statement reads after a ledger write.
type StatementInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service owns the voucher lifecycle: numbered draft, balanced posting into
// the ledger, and cancellation (the only sanctioned journal-void path).
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator StatementInvalidator
	now         func() time.Time
}

// NewService constructs the voucher service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetStatementInvalidator registers the hook called after Post and Cancel.
func (s *Service) SetStatementInvalidator(inv StatementInvalidator) {
	s.invalidator = inv
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx)
}

// NextNumber allocates the next document number for the type. The whole
// increment runs in one transaction holding the counter row lock, so
// concurrent callers observe gap-free, strictly increasing values.
func (s *Service) NextNumber(ctx context.Context, t VoucherType) (string, error) {
	if !t.Valid() {
		return "", ErrInvalidType
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.NextSequenceNumber(ctx, t)
		if err != nil {
			return err
		}
		number = FormatNumber(t, n)
		return nil
	})
	return number, err
}

// CreateDraft allocates a number and persists a new draft voucher atomically.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (Voucher, error) {
	if err := input.Validate(); err != nil {
		return Voucher{}, err
	}
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.NextSequenceNumber(ctx, input.Type)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertVoucher(ctx, input, FormatNumber(input.Type, n))
		if err != nil {
			return err
		}
		if err := tx.InsertVoucherLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		inserted.Lines = toVoucherLines(inserted.ID, input.Lines, s.now())
		voucher = inserted
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// Post validates the draft and materialises it into a posted journal. The
// journal insert and the voucher status change commit together or not at all.
func (s *Service) Post(ctx context.Context, voucherID, actorID int64) (Voucher, error) {
	if voucherID == 0 {
		return Voucher{}, errors.New("vouchers: voucher id required")
	}
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetVoucherForUpdate(ctx, voucherID)
		if err != nil {
			return err
		}
		if current.Status != VoucherStatusDraft {
			return ErrNotDraft
		}
		loaded, lines, err := tx.GetVoucherWithLines(ctx, voucherID)
		if err != nil {
			return err
		}
		loaded.Lines = lines
		if !loaded.IsBalanced() {
			return ErrUnbalanced
		}
		postedAt := s.now()
		journalID, err := tx.InsertPostedJournal(ctx, loaded, lines, actorID, postedAt)
		if err != nil {
			return err
		}
		if err := tx.MarkVoucherPosted(ctx, voucherID, journalID, actorID, postedAt); err != nil {
			return err
		}
		loaded.Status = VoucherStatusPosted
		loaded.JournalID = &journalID
		loaded.ApprovedBy = &actorID
		loaded.ApprovedAt = &postedAt
		voucher = loaded
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "voucher.post", voucher.ID, map[string]any{
		"number":     voucher.Number,
		"type":       string(voucher.Type),
		"journal_id": voucher.JournalID,
	})
	return voucher, nil
}

// Cancel voids the linked journal and marks the voucher cancelled, atomically.
func (s *Service) Cancel(ctx context.Context, voucherID, actorID int64) (Voucher, error) {
	if voucherID == 0 {
		return Voucher{}, errors.New("vouchers: voucher id required")
	}
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetVoucherForUpdate(ctx, voucherID)
		if err != nil {
			return err
		}
		if current.Status != VoucherStatusPosted {
			return ErrNotPosted
		}
		if current.JournalID != nil {
			if err := tx.MarkJournalVoid(ctx, *current.JournalID); err != nil {
				return err
			}
		}
		if err := tx.MarkVoucherCancelled(ctx, voucherID); err != nil {
			return err
		}
		current.Status = VoucherStatusCancelled
		voucher = current
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "voucher.cancel", voucher.ID, map[string]any{
		"number": voucher.Number,
	})
	return voucher, nil
}

// Get loads a voucher with its lines.
func (s *Service) Get(ctx context.Context, voucherID int64) (Voucher, error) {
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, lines, err := tx.GetVoucherWithLines(ctx, voucherID)
		if err != nil {
			return err
		}
		loaded.Lines = lines
		voucher = loaded
		return nil
	})
	return voucher, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, voucherID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "voucher",
		EntityID: fmt.Sprintf("%d", voucherID),
		Meta:     meta,
		At:       s.now(),
	})
}

func toVoucherLines(voucherID int64, lines []LineInput, ts time.Time) []VoucherLine {
	out := make([]VoucherLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, VoucherLine{
			VoucherID:    voucherID,
			AccountID:    line.AccountID,
			CostCenterID: line.CostCenterID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			LineType:     line.LineType,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		})
	}
	return out
}
