package ar

import (
	"errors"
	"time"
)

// InvoiceStatus enumerates invoice payment states.
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "open"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// InstallmentStatus enumerates installment states.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

// Interval enumerates schedule step sizes.
type Interval string

const (
	IntervalWeekly    Interval = "WEEKLY"
	IntervalBiweekly  Interval = "BIWEEKLY"
	IntervalMonthly   Interval = "MONTHLY"
	IntervalQuarterly Interval = "QUARTERLY"
)

// Valid reports whether the interval is one of the closed set.
func (i Interval) Valid() bool {
	switch i {
	case IntervalWeekly, IntervalBiweekly, IntervalMonthly, IntervalQuarterly:
		return true
	}
	return false
}

// Step returns the due date for the installment at zero-based position n,
// counting from start. Weekly steps are day arithmetic; monthly and quarterly
// follow the calendar.
func (i Interval) Step(start time.Time, n int) time.Time {
	switch i {
	case IntervalWeekly:
		return start.AddDate(0, 0, 7*n)
	case IntervalBiweekly:
		return start.AddDate(0, 0, 14*n)
	case IntervalMonthly:
		return start.AddDate(0, n, 0)
	case IntervalQuarterly:
		return start.AddDate(0, 3*n, 0)
	}
	return start
}

// Invoice is a student billing document. Paid and due are always derived from
// payment rows through the calculator, never trusted from storage.
type Invoice struct {
	ID             int64
	StudentID      int64
	CourseID       int64
	BranchID       *int64
	Subtotal       float64
	ManualDiscount float64
	PromoDiscount  float64
	TaxRate        float64
	TotalAmount    float64
	DownPayment    float64
	Status         InvoiceStatus
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Installment is one row of an invoice's payment schedule.
type Installment struct {
	ID         int64
	InvoiceID  int64
	Seq        int
	DueDate    time.Time
	Amount     float64
	PaidAmount float64
	Status     InstallmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Due returns the unpaid remainder of the installment.
func (i Installment) Due() float64 {
	due := i.Amount - i.PaidAmount
	if due < 0 {
		return 0
	}
	return due
}

// Payment records money received against an invoice. InstallmentID points at
// the first installment the allocation touched.
type Payment struct {
	ID            int64
	InvoiceID     int64
	InstallmentID *int64
	Amount        float64
	Method        string
	Reference     string
	VoucherID     *int64
	ReceivedBy    int64
	PaidAt        time.Time
	CreatedAt     time.Time
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("ar: invoice not found")
	// ErrInvalidScheduleParams indicates schedule inputs that cannot produce
	// a valid installment plan.
	ErrInvalidScheduleParams = errors.New("ar: invalid schedule parameters")
	// ErrExcessPayment indicates a payment larger than the invoice's
	// outstanding due.
	ErrExcessPayment = errors.New("ar: payment exceeds outstanding due")
	// ErrInstallmentsNotAllowed indicates the resolved price forbids an
	// installment plan.
	ErrInstallmentsNotAllowed = errors.New("ar: price does not allow installments")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = errors.New("ar: payment not found")
	// ErrVoucherAlreadyIssued indicates the payment is already linked to a
	// posted receipt voucher.
	ErrVoucherAlreadyIssued = errors.New("ar: receipt voucher already issued for payment")
)
