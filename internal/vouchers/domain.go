package vouchers

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// VoucherType enumerates voucher kinds.
type VoucherType string

const (
	VoucherTypeReceipt VoucherType = "RECEIPT"
	VoucherTypePayment VoucherType = "PAYMENT"
)

// Valid reports whether the type is one of the closed set.
func (t VoucherType) Valid() bool {
	return t == VoucherTypeReceipt || t == VoucherTypePayment
}

// Prefix returns the document-number prefix for the type.
func (t VoucherType) Prefix() string {
	switch t {
	case VoucherTypeReceipt:
		return "RV"
	case VoucherTypePayment:
		return "PV"
	}
	return "VC"
}

// VoucherStatus enumerates voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusDraft     VoucherStatus = "DRAFT"
	VoucherStatusPosted    VoucherStatus = "POSTED"
	VoucherStatusCancelled VoucherStatus = "CANCELLED"
)

// LineType classifies a voucher line.
type LineType string

const (
	LineTypeCash       LineType = "CASH"
	LineTypeBank       LineType = "BANK"
	LineTypeReceivable LineType = "RECEIVABLE"
	LineTypeOther      LineType = "OTHER"
)

// balanceTolerance mirrors the ledger posting tolerance.
const balanceTolerance = 0.01

// Voucher is a pre-ledger receipt/payment slip. Posting materialises it into
// a posted journal; cancelling voids that journal.
type Voucher struct {
	ID         int64
	Number     string
	Type       VoucherType
	Status     VoucherStatus
	Date       time.Time
	Payee      string
	BranchID   *int64
	JournalID  *int64
	ApprovedBy *int64
	ApprovedAt *time.Time
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []VoucherLine
}

// VoucherLine stores a debit or credit amount for an account.
type VoucherLine struct {
	ID           int64
	VoucherID    int64
	AccountID    int64
	CostCenterID *int64
	Debit        float64
	Credit       float64
	LineType     LineType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineInput describes a voucher line in a draft request.
type LineInput struct {
	AccountID    int64
	CostCenterID *int64
	Debit        float64
	Credit       float64
	LineType     LineType
}

// DraftInput groups fields required to create a draft voucher.
type DraftInput struct {
	Type      VoucherType
	Date      time.Time
	Payee     string
	BranchID  *int64
	CreatedBy int64
	Lines     []LineInput
}

var (
	// ErrNotDraft indicates posting of a non-draft voucher.
	ErrNotDraft = errors.New("vouchers: voucher is not in draft status")
	// ErrNotPosted indicates cancellation of a non-posted voucher.
	ErrNotPosted = errors.New("vouchers: voucher is not in posted status")
	// ErrUnbalanced indicates debits and credits differ beyond tolerance.
	ErrUnbalanced = errors.New("vouchers: voucher lines must balance")
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = errors.New("vouchers: voucher not found")
	// ErrInvalidType indicates an unknown voucher type.
	ErrInvalidType = errors.New("vouchers: invalid voucher type")
	// ErrNumberConflict indicates a duplicate voucher number, which can only
	// happen when the sequence row lock was bypassed.
	ErrNumberConflict = errors.New("vouchers: voucher number conflict")
)

// FormatNumber renders a sequence value as a document number, e.g. RV-000042.
func FormatNumber(t VoucherType, n int64) string {
	return fmt.Sprintf("%s-%06d", t.Prefix(), n)
}

// IsBalanced reports whether line debits and credits agree within tolerance.
func (v Voucher) IsBalanced() bool {
	var debit, credit float64
	for _, line := range v.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return math.Abs(debit-credit) < balanceTolerance
}

// Validate ensures draft input meets minimum criteria.
func (in DraftInput) Validate() error {
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Date.IsZero() {
		return errors.New("vouchers: date required")
	}
	if len(in.Lines) < 2 {
		return errors.New("vouchers: voucher requires at least two lines")
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("vouchers: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("vouchers: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("vouchers: line %d cannot be both debit and credit", idx)
		}
	}
	return nil
}
