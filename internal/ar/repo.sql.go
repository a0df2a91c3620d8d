package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academix-erp/academix/internal/platform/db"
)

// Repository persists invoices, installments and payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ar repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, student_id, course_id, branch_id, subtotal, manual_discount, promo_discount,
tax_rate, total_amount, down_payment, status, created_by, created_at, updated_at`

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ar_invoices
(student_id, course_id, branch_id, subtotal, manual_discount, promo_discount, tax_rate, total_amount, down_payment, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`,
		inv.StudentID, inv.CourseID, inv.BranchID, toNumeric(inv.Subtotal), toNumeric(inv.ManualDiscount),
		toNumeric(inv.PromoDiscount), toNumeric(inv.TaxRate), toNumeric(inv.TotalAmount), toNumeric(inv.DownPayment),
		inv.Status, nullInt(inv.CreatedBy)).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error) {
	return r.scanInvoice(ctx, fmt.Sprintf(`SELECT %s FROM ar_invoices WHERE id=$1`, invoiceColumns), invoiceID)
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error) {
	return r.scanInvoice(ctx, fmt.Sprintf(`SELECT %s FROM ar_invoices WHERE id=$1 FOR UPDATE`, invoiceColumns), invoiceID)
}

func (r *txRepository) scanInvoice(ctx context.Context, query string, invoiceID int64) (Invoice, error) {
	var inv Invoice
	err := r.tx.QueryRow(ctx, query, invoiceID).
		Scan(&inv.ID, &inv.StudentID, &inv.CourseID, &inv.BranchID, &inv.Subtotal, &inv.ManualDiscount,
			&inv.PromoDiscount, &inv.TaxRate, &inv.TotalAmount, &inv.DownPayment, &inv.Status,
			&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, invoiceID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) ListInstallments(ctx context.Context, invoiceID int64) ([]Installment, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, invoice_id, seq, due_date, amount, paid_amount, status, created_at, updated_at
FROM ar_installments WHERE invoice_id=$1 ORDER BY due_date ASC, seq ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(&inst.ID, &inst.InvoiceID, &inst.Seq, &inst.DueDate, &inst.Amount, &inst.PaidAmount,
			&inst.Status, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *txRepository) DeleteInstallments(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM ar_installments WHERE invoice_id=$1`, invoiceID)
	return err
}

func (r *txRepository) InsertInstallments(ctx context.Context, invoiceID int64, entries []ScheduleEntry) error {
	for _, entry := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ar_installments (invoice_id, seq, due_date, amount, paid_amount, status)
VALUES ($1,$2,$3,$4,0,$5)`, invoiceID, entry.Seq, entry.DueDate, toNumeric(entry.Amount), InstallmentStatusPending); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateInstallmentAllocation(ctx context.Context, installmentID int64, paidAmount float64, status InstallmentStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE ar_installments SET paid_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		installmentID, toNumeric(paidAmount), status)
	return err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ar_payments
(invoice_id, installment_id, amount, method, reference, received_by, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		p.InvoiceID, p.InstallmentID, toNumeric(p.Amount), p.Method, p.Reference, nullInt(p.ReceivedBy), p.PaidAt).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) GetPayment(ctx context.Context, paymentID int64) (Payment, error) {
	var p Payment
	err := r.tx.QueryRow(ctx, `SELECT id, invoice_id, installment_id, amount, method, reference, voucher_id, received_by, paid_at, created_at
FROM ar_payments WHERE id=$1`, paymentID).
		Scan(&p.ID, &p.InvoiceID, &p.InstallmentID, &p.Amount, &p.Method, &p.Reference, &p.VoucherID,
			&p.ReceivedBy, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ar_payments WHERE invoice_id=$1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *txRepository) LinkPaymentVoucher(ctx context.Context, paymentID, voucherID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ar_payments SET voucher_id=$2 WHERE id=$1`, paymentID, voucherID)
	return err
}

func (r *txRepository) MarkInstallmentsOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_installments SET status=$1, updated_at=NOW()
WHERE status=$2 AND due_date < $3`, InstallmentStatusOverdue, InstallmentStatusPending, asOf)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
