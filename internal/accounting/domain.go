package accounting

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the account type is one of the closed set.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// BalanceTolerance is the maximum accepted |debit-credit| difference on posting.
const BalanceTolerance = 0.01

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Type           AccountType
	ParentID       *int64
	OpeningBalance float64
	BranchID       *int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CostCenter models a cost dimension node, tree-shaped like accounts.
type CostCenter struct {
	ID        int64
	Code      string
	Name      string
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Journal captures a set of debit/credit lines and their posting state.
type Journal struct {
	ID            int64
	Reference     string
	ReferenceType string
	ReferenceID   int64
	Date          time.Time
	Status        JournalStatus
	BranchID      *int64
	PostedAt      *time.Time
	PostedBy      *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []JournalLine
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID           int64
	JournalID    int64
	AccountID    int64
	CostCenterID *int64
	Debit        float64
	Credit       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineInput describes a journal line in a draft request.
type LineInput struct {
	AccountID    int64
	CostCenterID *int64
	Debit        float64
	Credit       float64
}

// DraftInput groups fields required to create a draft journal.
type DraftInput struct {
	Reference     string
	ReferenceType string
	ReferenceID   int64
	Date          time.Time
	BranchID      *int64
	Lines         []LineInput
}

// PostInput wraps parameters for posting a draft.
type PostInput struct {
	JournalID int64
	ActorID   int64
}

// VoidInput wraps parameters for voiding a posted journal.
type VoidInput struct {
	JournalID int64
	ActorID   int64
	Reason    string
}

// StatementRow is the read-only query shape consumed by reporting collaborators.
type StatementRow struct {
	JournalID   int64
	Reference   string
	Date        time.Time
	AccountCode string
	AccountName string
	Debit       float64
	Credit      float64
	Balance     float64
	PaymentRef  *string
}

var (
	// ErrUnbalanced indicates debits and credits differ beyond tolerance.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrImmutablePosted indicates an attempted mutation or deletion of a posted journal.
	ErrImmutablePosted = errors.New("accounting: posted journal is immutable")
	// ErrInvalidStatus indicates the requested transition is not allowed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrAccountInactive indicates a line referencing an inactive account.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrChartCycle indicates a parent chain loops back on itself.
	ErrChartCycle = errors.New("accounting: account tree contains a cycle")
)

// Validate ensures the draft input meets minimum criteria.
func (in DraftInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("accounting: journal date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("accounting: line %d cannot be both debit and credit", idx)
		}
	}
	return nil
}

// Totals returns the summed debit and credit of the journal lines.
func (j Journal) Totals() (debit, credit float64) {
	return sumLineAmounts(j.Lines)
}

// Balanced reports whether debit and credit agree within tolerance.
func (j Journal) Balanced() bool {
	debit, credit := j.Totals()
	return math.Abs(debit-credit) < BalanceTolerance
}

func sumLineAmounts(lines []JournalLine) (debit, credit float64) {
	for _, line := range lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}
