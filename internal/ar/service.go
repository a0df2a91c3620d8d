package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academix-erp/academix/internal/pricing"
	"github.com/academix-erp/academix/internal/settings"
	"github.com/academix-erp/academix/internal/shared"
	"github.com/academix-erp/academix/internal/vouchers"
)

// excessTolerance allows for cent rounding when comparing a payment against
// the outstanding due.
const excessTolerance = 0.01

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations executed inside one transaction.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error
	// ListInstallments returns the invoice's installments ordered by due
	// date then sequence.
	ListInstallments(ctx context.Context, invoiceID int64) ([]Installment, error)
	DeleteInstallments(ctx context.Context, invoiceID int64) error
	InsertInstallments(ctx context.Context, invoiceID int64, entries []ScheduleEntry) error
	UpdateInstallmentAllocation(ctx context.Context, installmentID int64, paidAmount float64, status InstallmentStatus) error
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, paymentID int64) (Payment, error)
	SumPayments(ctx context.Context, invoiceID int64) (float64, error)
	LinkPaymentVoucher(ctx context.Context, paymentID, voucherID int64) error
	MarkInstallmentsOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// PriceResolver is the pricing lookup the invoice flow consumes.
type PriceResolver interface {
	Resolve(ctx context.Context, courseID int64, branchID *int64, deliveryType string) (pricing.CoursePrice, error)
}

// AccountDefaults supplies the configured ledger accounts for automated
// receipt posting.
type AccountDefaults interface {
	DefaultAccounts(ctx context.Context) (settings.DefaultAccounts, error)
}

// VoucherService is the voucher lifecycle slice the payment flow drives.
type VoucherService interface {
	CreateDraft(ctx context.Context, input vouchers.DraftInput) (vouchers.Voucher, error)
	Post(ctx context.Context, voucherID, actorID int64) (vouchers.Voucher, error)
}

// AuditPort records billing events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns invoices, installment schedules and payments.
type Service struct {
	repo     RepositoryPort
	prices   PriceResolver
	defaults AccountDefaults
	voucher  VoucherService
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the receivables service.
func NewService(repo RepositoryPort, prices PriceResolver, defaults AccountDefaults, voucher VoucherService, audit AuditPort) *Service {
	return &Service{repo: repo, prices: prices, defaults: defaults, voucher: voucher, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoiceInput groups fields required to bill a student for a course.
type CreateInvoiceInput struct {
	StudentID        int64
	CourseID         int64
	BranchID         *int64
	DeliveryType     string
	ManualDiscount   float64
	PromoDiscount    float64
	TaxRate          float64
	DownPayment      float64
	InstallmentCount int
	Interval         Interval
	StartDate        time.Time
	CreatedBy        int64
}

// InvoiceDetail bundles an invoice with its derived totals and schedule.
type InvoiceDetail struct {
	Invoice      Invoice       `json:"invoice"`
	Totals       Totals        `json:"totals"`
	Installments []Installment `json:"installments"`
}

// CreateInvoice resolves the course price, computes the totals and writes the
// invoice with its installment schedule in one transaction. The resolved
// price's installment policy is enforced before anything is written.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (InvoiceDetail, error) {
	if in.StudentID == 0 || in.CourseID == 0 {
		return InvoiceDetail{}, errors.New("ar: student and course ids required")
	}
	price, err := s.prices.Resolve(ctx, in.CourseID, in.BranchID, in.DeliveryType)
	if err != nil {
		return InvoiceDetail{}, err
	}
	totals := CalculateTotals(price.Amount(), in.ManualDiscount, in.PromoDiscount, in.TaxRate, 0)

	var entries []ScheduleEntry
	if in.InstallmentCount > 0 {
		if !price.AllowInstallments {
			return InvoiceDetail{}, ErrInstallmentsNotAllowed
		}
		if price.MaxInstallments > 0 && in.InstallmentCount > price.MaxInstallments {
			return InvoiceDetail{}, fmt.Errorf("%w: at most %d installments allowed", ErrInvalidScheduleParams, price.MaxInstallments)
		}
		if in.DownPayment < price.MinDownPayment {
			return InvoiceDetail{}, fmt.Errorf("%w: down payment below minimum %.2f", ErrInvalidScheduleParams, price.MinDownPayment)
		}
		entries, err = GenerateSchedule(totals.Total, in.DownPayment, in.InstallmentCount, in.Interval, in.StartDate)
		if err != nil {
			return InvoiceDetail{}, err
		}
	}

	detail := InvoiceDetail{Totals: totals}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertInvoice(ctx, Invoice{
			StudentID:      in.StudentID,
			CourseID:       in.CourseID,
			BranchID:       in.BranchID,
			Subtotal:       totals.Subtotal,
			ManualDiscount: totals.ManualDiscount,
			PromoDiscount:  totals.PromoDiscount,
			TaxRate:        in.TaxRate,
			TotalAmount:    totals.Total,
			DownPayment:    in.DownPayment,
			Status:         DetermineStatus(totals),
			CreatedBy:      in.CreatedBy,
		})
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.InsertInstallments(ctx, inserted.ID, entries); err != nil {
				return err
			}
		}
		detail.Invoice = inserted
		installments, err := tx.ListInstallments(ctx, inserted.ID)
		if err != nil {
			return err
		}
		detail.Installments = installments
		return nil
	})
	if err != nil {
		return InvoiceDetail{}, err
	}
	s.record(ctx, in.CreatedBy, "invoice.create", detail.Invoice.ID, map[string]any{
		"student_id": in.StudentID,
		"course_id":  in.CourseID,
		"total":      totals.Total,
	})
	return detail, nil
}

// RegenerateSchedule deletes the invoice's schedule and writes a fresh one in
// the same transaction. Validation happens before the delete, so a bad
// request never leaves the invoice without a schedule.
func (s *Service) RegenerateSchedule(ctx context.Context, invoiceID int64, n int, interval Interval, start time.Time, actorID int64) ([]Installment, error) {
	var installments []Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		entries, err := GenerateSchedule(inv.TotalAmount, inv.DownPayment, n, interval, start)
		if err != nil {
			return err
		}
		if err := tx.DeleteInstallments(ctx, invoiceID); err != nil {
			return err
		}
		if err := tx.InsertInstallments(ctx, invoiceID, entries); err != nil {
			return err
		}
		installments, err = tx.ListInstallments(ctx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "invoice.regenerate_schedule", invoiceID, map[string]any{
		"installments": n,
		"interval":     string(interval),
	})
	return installments, nil
}

// PaymentInput groups fields required to record a payment.
type PaymentInput struct {
	InvoiceID  int64
	Amount     float64
	Method     string
	ReceivedBy int64
	PaidAt     time.Time
}

// PaymentReceipt is the outcome of recording a payment.
type PaymentReceipt struct {
	Payment       Payment          `json:"payment"`
	Allocation    AllocationResult `json:"-"`
	Touched       []Installment    `json:"touched_installments"`
	InvoiceStatus InvoiceStatus    `json:"invoice_status"`
	VoucherNumber string           `json:"voucher_number,omitempty"`
}

// RecordPayment allocates a payment over the invoice's installments, records
// it and posts the mirroring receipt voucher. A payment larger than the
// outstanding due is rejected before anything is written; there is no silent
// remainder.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (PaymentReceipt, error) {
	if in.InvoiceID == 0 {
		return PaymentReceipt{}, errors.New("ar: invoice id required")
	}
	if in.Amount <= 0 {
		return PaymentReceipt{}, errors.New("ar: payment amount must be positive")
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var (
		receipt PaymentReceipt
		invoice Invoice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		alreadyPaid, err := tx.SumPayments(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		before := CalculateTotals(inv.Subtotal, inv.ManualDiscount, inv.PromoDiscount, inv.TaxRate, alreadyPaid)
		if in.Amount > before.Due+excessTolerance {
			return ErrExcessPayment
		}
		installments, err := tx.ListInstallments(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		allocation := Allocate(in.Amount, installments)
		for _, touched := range allocation.Touched {
			if err := tx.UpdateInstallmentAllocation(ctx, touched.ID, touched.PaidAmount, touched.Status); err != nil {
				return err
			}
		}
		payment := Payment{
			InvoiceID:  in.InvoiceID,
			Amount:     in.Amount,
			Method:     in.Method,
			Reference:  "PAY-" + uuid.NewString(),
			ReceivedBy: in.ReceivedBy,
			PaidAt:     paidAt,
		}
		if len(allocation.Touched) > 0 {
			first := allocation.Touched[0].ID
			payment.InstallmentID = &first
		}
		inserted, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		after := CalculateTotals(inv.Subtotal, inv.ManualDiscount, inv.PromoDiscount, inv.TaxRate, alreadyPaid+in.Amount)
		status := DetermineStatus(after)
		if err := tx.UpdateInvoiceStatus(ctx, in.InvoiceID, status); err != nil {
			return err
		}
		invoice = inv
		receipt = PaymentReceipt{
			Payment:       inserted,
			Allocation:    allocation,
			Touched:       allocation.Touched,
			InvoiceStatus: status,
		}
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, err
	}

	if number, voucherID, err := s.postReceiptVoucher(ctx, invoice, in, paidAt); err != nil {
		return PaymentReceipt{}, fmt.Errorf("ar: payment %s recorded but receipt voucher failed: %w", receipt.Payment.Reference, err)
	} else if voucherID != 0 {
		linkErr := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.LinkPaymentVoucher(ctx, receipt.Payment.ID, voucherID)
		})
		if linkErr != nil {
			return PaymentReceipt{}, linkErr
		}
		receipt.Payment.VoucherID = &voucherID
		receipt.VoucherNumber = number
	}

	s.record(ctx, in.ReceivedBy, "payment.record", receipt.Payment.ID, map[string]any{
		"invoice_id": in.InvoiceID,
		"amount":     in.Amount,
		"reference":  receipt.Payment.Reference,
	})
	return receipt, nil
}

// postReceiptVoucher debits the configured cash account and credits the
// receivable account for the payment amount, then posts the voucher.
func (s *Service) postReceiptVoucher(ctx context.Context, inv Invoice, in PaymentInput, paidAt time.Time) (string, int64, error) {
	if s.voucher == nil || s.defaults == nil {
		return "", 0, nil
	}
	accounts, err := s.defaults.DefaultAccounts(ctx)
	if err != nil {
		return "", 0, err
	}
	draft, err := s.voucher.CreateDraft(ctx, vouchers.DraftInput{
		Type:      vouchers.VoucherTypeReceipt,
		Date:      paidAt,
		Payee:     fmt.Sprintf("student:%d", inv.StudentID),
		BranchID:  inv.BranchID,
		CreatedBy: in.ReceivedBy,
		Lines: []vouchers.LineInput{
			{AccountID: accounts.CashAccountID, Debit: in.Amount, LineType: vouchers.LineTypeCash},
			{AccountID: accounts.ARAccountID, Credit: in.Amount, LineType: vouchers.LineTypeReceivable},
		},
	})
	if err != nil {
		return "", 0, err
	}
	posted, err := s.voucher.Post(ctx, draft.ID, in.ReceivedBy)
	if err != nil {
		return "", 0, err
	}
	return posted.Number, posted.ID, nil
}

// ReissueReceiptVoucher posts the receipt voucher for a payment that was
// recorded without one, which happens when the voucher step failed after the
// payment transaction committed. A payment already linked to a voucher is
// rejected, so the ledger never sees the same cash twice.
func (s *Service) ReissueReceiptVoucher(ctx context.Context, paymentID, actorID int64) (string, error) {
	if paymentID == 0 {
		return "", errors.New("ar: payment id required")
	}
	if s.voucher == nil || s.defaults == nil {
		return "", errors.New("ar: voucher service not configured")
	}
	var (
		payment Payment
		invoice Invoice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.VoucherID != nil {
			return ErrVoucherAlreadyIssued
		}
		inv, err := tx.GetInvoice(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		payment = p
		invoice = inv
		return nil
	})
	if err != nil {
		return "", err
	}

	number, voucherID, err := s.postReceiptVoucher(ctx, invoice, PaymentInput{
		InvoiceID:  payment.InvoiceID,
		Amount:     payment.Amount,
		Method:     payment.Method,
		ReceivedBy: actorID,
	}, payment.PaidAt)
	if err != nil {
		return "", err
	}
	if voucherID != 0 {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.LinkPaymentVoucher(ctx, paymentID, voucherID)
		})
		if err != nil {
			return "", err
		}
	}
	s.record(ctx, actorID, "payment.reissue_voucher", paymentID, map[string]any{
		"reference":      payment.Reference,
		"voucher_number": number,
	})
	return number, nil
}

// GetInvoice loads an invoice with derived totals and its schedule.
func (s *Service) GetInvoice(ctx context.Context, invoiceID int64) (InvoiceDetail, error) {
	var detail InvoiceDetail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		installments, err := tx.ListInstallments(ctx, invoiceID)
		if err != nil {
			return err
		}
		detail = InvoiceDetail{
			Invoice:      inv,
			Totals:       CalculateTotals(inv.Subtotal, inv.ManualDiscount, inv.PromoDiscount, inv.TaxRate, paid),
			Installments: installments,
		}
		return nil
	})
	return detail, err
}

// MarkOverdue flips pending installments past their due date to overdue and
// returns how many rows changed. The cron worker drives this.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var changed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.MarkInstallmentsOverdue(ctx, asOf)
		if err != nil {
			return err
		}
		changed = n
		return nil
	})
	return changed, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ar",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
