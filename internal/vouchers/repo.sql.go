package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academix-erp/academix/internal/platform/db"
)

// Repository persists vouchers and their sequence counters.
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
		return errors.New("vouchers repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NextSequenceNumber increments the per-type counter under an exclusive row
// lock. The seed insert tolerates a concurrent creator; the FOR UPDATE read
// then serialises every increment, which is what makes numbers gap-free.
func (r *txRepository) NextSequenceNumber(ctx context.Context, t VoucherType) (int64, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_sequences (voucher_type, last_number)
VALUES ($1, 0) ON CONFLICT (voucher_type) DO NOTHING`, t); err != nil {
		return 0, err
	}
	var last int64
	if err := r.tx.QueryRow(ctx, `SELECT last_number FROM voucher_sequences WHERE voucher_type=$1 FOR UPDATE`, t).Scan(&last); err != nil {
		return 0, err
	}
	next := last + 1
	if _, err := r.tx.Exec(ctx, `UPDATE voucher_sequences SET last_number=$2, updated_at=NOW() WHERE voucher_type=$1`, t, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *txRepository) InsertVoucher(ctx context.Context, in DraftInput, number string) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO vouchers (number, voucher_type, status, voucher_date, payee, branch_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		number, in.Type, VoucherStatusDraft, in.Date, in.Payee, nullIntPtr(in.BranchID), nullInt(in.CreatedBy))
	var v Voucher
	v.Number = number
	v.Type = in.Type
	v.Status = VoucherStatusDraft
	v.Date = in.Date
	v.Payee = in.Payee
	v.BranchID = in.BranchID
	v.CreatedBy = in.CreatedBy
	if err := row.Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_vouchers_number_type" {
			return Voucher{}, ErrNumberConflict
		}
		return Voucher{}, err
	}
	return v, nil
}

func (r *txRepository) InsertVoucherLines(ctx context.Context, voucherID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_lines (voucher_id, account_id, cost_center_id, debit, credit, line_type)
VALUES ($1,$2,$3,$4,$5,$6)`, voucherID, line.AccountID, nullIntPtr(line.CostCenterID), toNumeric(line.Debit), toNumeric(line.Credit), line.LineType); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetVoucherForUpdate(ctx context.Context, voucherID int64) (Voucher, error) {
	var v Voucher
	err := r.tx.QueryRow(ctx, `SELECT id, number, voucher_type, status, voucher_date, payee, branch_id, journal_id, approved_by, approved_at, created_by, created_at, updated_at
FROM vouchers WHERE id=$1 FOR UPDATE`, voucherID).
		Scan(&v.ID, &v.Number, &v.Type, &v.Status, &v.Date, &v.Payee, &v.BranchID, &v.JournalID, &v.ApprovedBy, &v.ApprovedAt, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	return v, nil
}

func (r *txRepository) GetVoucherWithLines(ctx context.Context, voucherID int64) (Voucher, []VoucherLine, error) {
	var v Voucher
	err := r.tx.QueryRow(ctx, `SELECT id, number, voucher_type, status, voucher_date, payee, branch_id, journal_id, approved_by, approved_at, created_by, created_at, updated_at
FROM vouchers WHERE id=$1`, voucherID).
		Scan(&v.ID, &v.Number, &v.Type, &v.Status, &v.Date, &v.Payee, &v.BranchID, &v.JournalID, &v.ApprovedBy, &v.ApprovedAt, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, nil, ErrVoucherNotFound
		}
		return Voucher{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_id, account_id, cost_center_id, debit, credit, line_type, created_at, updated_at
FROM voucher_lines WHERE voucher_id=$1 ORDER BY id ASC`, voucherID)
	if err != nil {
		return Voucher{}, nil, err
	}
	defer rows.Close()
	var lines []VoucherLine
	for rows.Next() {
		var line VoucherLine
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.AccountID, &line.CostCenterID, &line.Debit, &line.Credit, &line.LineType, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return Voucher{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Voucher{}, nil, err
	}
	return v, lines, nil
}

func (r *txRepository) MarkVoucherPosted(ctx context.Context, voucherID, journalID, approvedBy int64, approvedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status=$2, journal_id=$3, approved_by=$4, approved_at=$5, updated_at=NOW() WHERE id=$1`,
		voucherID, VoucherStatusPosted, journalID, nullInt(approvedBy), approvedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

func (r *txRepository) MarkVoucherCancelled(ctx context.Context, voucherID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status=$2, updated_at=NOW() WHERE id=$1`, voucherID, VoucherStatusCancelled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// InsertPostedJournal mirrors the voucher lines into the ledger tables in
// POSTED status, inside the caller's transaction.
func (r *txRepository) InsertPostedJournal(ctx context.Context, v Voucher, lines []VoucherLine, postedBy int64, postedAt time.Time) (int64, error) {
	var journalID int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (reference, reference_type, reference_id, journal_date, status, branch_id, posted_by, posted_at)
VALUES ($1,'voucher',$2,$3,'POSTED',$4,$5,$6) RETURNING id`,
		v.Number, v.ID, v.Date, nullIntPtr(v.BranchID), nullInt(postedBy), postedAt).Scan(&journalID)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, cost_center_id, debit, credit)
VALUES ($1,$2,$3,$4,$5)`, journalID, line.AccountID, nullIntPtr(line.CostCenterID), toNumeric(line.Debit), toNumeric(line.Credit)); err != nil {
			return 0, err
		}
	}
	return journalID, nil
}

func (r *txRepository) MarkJournalVoid(ctx context.Context, journalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status='VOID', updated_at=NOW() WHERE id=$1`, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("vouchers: linked journal not found")
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
