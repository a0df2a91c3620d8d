package ar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/academix-erp/academix/internal/pricing"
	"github.com/academix-erp/academix/internal/settings"
	"github.com/academix-erp/academix/internal/vouchers"
)

type memoryARRepo struct {
	invoices     map[int64]*Invoice
	installments map[int64]*Installment
	payments     map[int64]*Payment
	nextInvID    int64
	nextInstID   int64
	nextPayID    int64
}

func newMemoryARRepo() *memoryARRepo {
	return &memoryARRepo{
		invoices:     make(map[int64]*Invoice),
		installments: make(map[int64]*Installment),
		payments:     make(map[int64]*Payment),
	}
}

func (r *memoryARRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryARRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	r.nextInvID++
	inv.ID = r.nextInvID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	r.invoices[inv.ID] = &inv
	return inv, nil
}

func (r *memoryARRepo) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

func (r *memoryARRepo) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error) {
	return r.GetInvoice(ctx, invoiceID)
}

func (r *memoryARRepo) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func (r *memoryARRepo) ListInstallments(ctx context.Context, invoiceID int64) ([]Installment, error) {
	var out []Installment
	for _, inst := range r.installments {
		if inst.InvoiceID == invoiceID {
			out = append(out, *inst)
		}
	}
	// allocation sorts on its own; keep repo ordering stable by seq
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Seq < out[i].Seq {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memoryARRepo) DeleteInstallments(ctx context.Context, invoiceID int64) error {
	for id, inst := range r.installments {
		if inst.InvoiceID == invoiceID {
			delete(r.installments, id)
		}
	}
	return nil
}

func (r *memoryARRepo) InsertInstallments(ctx context.Context, invoiceID int64, entries []ScheduleEntry) error {
	for _, entry := range entries {
		r.nextInstID++
		r.installments[r.nextInstID] = &Installment{
			ID:        r.nextInstID,
			InvoiceID: invoiceID,
			Seq:       entry.Seq,
			DueDate:   entry.DueDate,
			Amount:    entry.Amount,
			Status:    InstallmentStatusPending,
		}
	}
	return nil
}

func (r *memoryARRepo) UpdateInstallmentAllocation(ctx context.Context, installmentID int64, paidAmount float64, status InstallmentStatus) error {
	inst, ok := r.installments[installmentID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inst.PaidAmount = paidAmount
	inst.Status = status
	return nil
}

func (r *memoryARRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	r.nextPayID++
	p.ID = r.nextPayID
	p.CreatedAt = time.Now()
	r.payments[p.ID] = &p
	return p, nil
}

func (r *memoryARRepo) GetPayment(ctx context.Context, paymentID int64) (Payment, error) {
	p, ok := r.payments[paymentID]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return *p, nil
}

func (r *memoryARRepo) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *memoryARRepo) LinkPaymentVoucher(ctx context.Context, paymentID, voucherID int64) error {
	p, ok := r.payments[paymentID]
	if !ok {
		return ErrInvoiceNotFound
	}
	p.VoucherID = &voucherID
	return nil
}

func (r *memoryARRepo) MarkInstallmentsOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var changed int64
	for _, inst := range r.installments {
		if inst.Status == InstallmentStatusPending && inst.DueDate.Before(asOf) {
			inst.Status = InstallmentStatusOverdue
			changed++
		}
	}
	return changed, nil
}

type stubPriceResolver struct {
	price pricing.CoursePrice
	err   error
}

func (s stubPriceResolver) Resolve(ctx context.Context, courseID int64, branchID *int64, deliveryType string) (pricing.CoursePrice, error) {
	if s.err != nil {
		return pricing.CoursePrice{}, s.err
	}
	return s.price, nil
}

type stubDefaults struct{}

func (stubDefaults) DefaultAccounts(ctx context.Context) (settings.DefaultAccounts, error) {
	return settings.DefaultAccounts{CashAccountID: 11, ARAccountID: 13, RevenueAccountID: 40}, nil
}

type stubVoucherService struct {
	drafted  []vouchers.DraftInput
	posted   []int64
	postErrs []error
}

func (s *stubVoucherService) CreateDraft(ctx context.Context, input vouchers.DraftInput) (vouchers.Voucher, error) {
	s.drafted = append(s.drafted, input)
	return vouchers.Voucher{ID: int64(len(s.drafted)), Number: "RV-000001", Type: input.Type, Status: vouchers.VoucherStatusDraft}, nil
}

func (s *stubVoucherService) Post(ctx context.Context, voucherID, actorID int64) (vouchers.Voucher, error) {
	if len(s.postErrs) > 0 {
		err := s.postErrs[0]
		s.postErrs = s.postErrs[1:]
		if err != nil {
			return vouchers.Voucher{}, err
		}
	}
	s.posted = append(s.posted, voucherID)
	return vouchers.Voucher{ID: voucherID, Number: "RV-000001", Status: vouchers.VoucherStatusPosted}, nil
}

func installmentPrice() pricing.CoursePrice {
	return pricing.CoursePrice{
		ID:                1,
		CourseID:          10,
		Mode:              pricing.PricingModeCourseTotal,
		Price:             300,
		AllowInstallments: true,
		MaxInstallments:   6,
		IsActive:          true,
	}
}

func newTestService(repo *memoryARRepo, price pricing.CoursePrice) (*Service, *stubVoucherService) {
	vs := &stubVoucherService{}
	svc := NewService(repo, stubPriceResolver{price: price}, stubDefaults{}, vs, nil)
	return svc, vs
}

func createTestInvoice(t *testing.T, svc *Service, n int) InvoiceDetail {
	t.Helper()
	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		StudentID:        5,
		CourseID:         10,
		TaxRate:          0,
		InstallmentCount: n,
		Interval:         IntervalMonthly,
		StartDate:        date(2026, 1, 1),
		CreatedBy:        1,
	})
	require.NoError(t, err)
	return detail
}

func TestCreateInvoiceWithSchedule(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())

	detail := createTestInvoice(t, svc, 3)
	require.Equal(t, 300.0, detail.Invoice.TotalAmount)
	require.Equal(t, InvoiceStatusOpen, detail.Invoice.Status)
	require.Len(t, detail.Installments, 3)
	require.Equal(t, 100.0, detail.Installments[0].Amount)
}

func TestCreateInvoiceRejectsInstallmentsWhenDisallowed(t *testing.T) {
	price := installmentPrice()
	price.AllowInstallments = false
	svc, _ := newTestService(newMemoryARRepo(), price)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		StudentID: 5, CourseID: 10, InstallmentCount: 3,
		Interval: IntervalMonthly, StartDate: date(2026, 1, 1),
	})
	require.ErrorIs(t, err, ErrInstallmentsNotAllowed)
}

func TestCreateInvoiceRejectsTooManyInstallments(t *testing.T) {
	svc, _ := newTestService(newMemoryARRepo(), installmentPrice())

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		StudentID: 5, CourseID: 10, InstallmentCount: 12,
		Interval: IntervalMonthly, StartDate: date(2026, 1, 1),
	})
	require.ErrorIs(t, err, ErrInvalidScheduleParams)
}

func TestCreateInvoiceEnforcesMinDownPayment(t *testing.T) {
	price := installmentPrice()
	price.MinDownPayment = 50
	svc, _ := newTestService(newMemoryARRepo(), price)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		StudentID: 5, CourseID: 10, InstallmentCount: 3, DownPayment: 20,
		Interval: IntervalMonthly, StartDate: date(2026, 1, 1),
	})
	require.ErrorIs(t, err, ErrInvalidScheduleParams)
}

func TestRegenerateScheduleReplacesRows(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	installments, err := svc.RegenerateSchedule(context.Background(), detail.Invoice.ID, 4, IntervalWeekly, date(2026, 2, 1), 1)
	require.NoError(t, err)
	require.Len(t, installments, 4)
	require.Equal(t, 75.0, installments[0].Amount)
	require.Len(t, repo.installments, 4)
}

func TestRegenerateScheduleKeepsOldOnBadParams(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	_, err := svc.RegenerateSchedule(context.Background(), detail.Invoice.ID, 0, IntervalWeekly, date(2026, 2, 1), 1)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)
	require.Len(t, repo.installments, 3)
}

func TestRecordPaymentAllocatesAndPostsReceipt(t *testing.T) {
	repo := newMemoryARRepo()
	svc, vs := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	receipt, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 150, Method: "cash", ReceivedBy: 2,
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPartial, receipt.InvoiceStatus)
	require.Len(t, receipt.Touched, 2)
	require.Equal(t, InstallmentStatusPaid, receipt.Touched[0].Status)
	require.Equal(t, 50.0, receipt.Touched[1].PaidAmount)

	require.NotNil(t, receipt.Payment.InstallmentID)
	require.Equal(t, receipt.Touched[0].ID, *receipt.Payment.InstallmentID)
	require.Contains(t, receipt.Payment.Reference, "PAY-")

	require.Len(t, vs.drafted, 1)
	require.Equal(t, vouchers.VoucherTypeReceipt, vs.drafted[0].Type)
	require.Equal(t, 150.0, vs.drafted[0].Lines[0].Debit)
	require.Equal(t, 150.0, vs.drafted[0].Lines[1].Credit)
	require.Len(t, vs.posted, 1)
	require.NotNil(t, receipt.Payment.VoucherID)
	require.Equal(t, "RV-000001", receipt.VoucherNumber)
}

func TestRecordPaymentFullSettlesInvoice(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	receipt, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 300, Method: "transfer", ReceivedBy: 2,
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, receipt.InvoiceStatus)
	for _, inst := range repo.installments {
		require.Equal(t, InstallmentStatusPaid, inst.Status)
	}
}

func TestRecordPaymentRejectsExcess(t *testing.T) {
	repo := newMemoryARRepo()
	svc, vs := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 350, Method: "cash", ReceivedBy: 2,
	})
	require.ErrorIs(t, err, ErrExcessPayment)
	require.Empty(t, repo.payments)
	require.Empty(t, vs.drafted)
}

func TestRecordPaymentExcessAfterPartial(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 250, Method: "cash", ReceivedBy: 2,
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 100, Method: "cash", ReceivedBy: 2,
	})
	require.ErrorIs(t, err, ErrExcessPayment)
}

func TestReissueVoucherAfterFailedPost(t *testing.T) {
	repo := newMemoryARRepo()
	svc, vs := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	vs.postErrs = []error{errors.New("redis down")}
	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 150, Method: "cash", ReceivedBy: 2,
	})
	require.Error(t, err)

	// The payment survived the failed voucher step and carries no link yet.
	require.Len(t, repo.payments, 1)
	var payment Payment
	for _, p := range repo.payments {
		payment = *p
	}
	require.Nil(t, payment.VoucherID)

	number, err := svc.ReissueReceiptVoucher(context.Background(), payment.ID, 2)
	require.NoError(t, err)
	require.Equal(t, "RV-000001", number)

	relinked, err := repo.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.NotNil(t, relinked.VoucherID)

	// A second retry after the payment already settled the ledger is rejected.
	_, err = svc.ReissueReceiptVoucher(context.Background(), payment.ID, 2)
	require.ErrorIs(t, err, ErrVoucherAlreadyIssued)
}

func TestReissueVoucherUnknownPayment(t *testing.T) {
	svc, _ := newTestService(newMemoryARRepo(), installmentPrice())

	_, err := svc.ReissueReceiptVoucher(context.Background(), 99, 2)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestMarkOverdue(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	changed, err := svc.MarkOverdue(context.Background(), date(2026, 2, 15))
	require.NoError(t, err)
	require.Equal(t, int64(2), changed)

	fresh, err := svc.GetInvoice(context.Background(), detail.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InstallmentStatusOverdue, fresh.Installments[0].Status)
	require.Equal(t, InstallmentStatusPending, fresh.Installments[2].Status)

	// second pass finds nothing new
	changed, err = svc.MarkOverdue(context.Background(), date(2026, 2, 15))
	require.NoError(t, err)
	require.Equal(t, int64(0), changed)
}

func TestGetInvoiceDerivesTotals(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, installmentPrice())
	detail := createTestInvoice(t, svc, 3)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: detail.Invoice.ID, Amount: 100, Method: "cash", ReceivedBy: 2,
	})
	require.NoError(t, err)

	fresh, err := svc.GetInvoice(context.Background(), detail.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, fresh.Totals.Paid)
	require.Equal(t, 200.0, fresh.Totals.Due)
	require.Equal(t, InvoiceStatusPartial, fresh.Invoice.Status)
}
