package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academix-erp/academix/internal/platform/db"
)

// Repository persists accounting entities.
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
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) InsertJournal(ctx context.Context, in DraftInput, status JournalStatus) (Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (reference, reference_type, reference_id, journal_date, status, branch_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		in.Reference, in.ReferenceType, nullInt(in.ReferenceID), in.Date, status, nullIntPtr(in.BranchID))
	var journal Journal
	journal.Reference = in.Reference
	journal.ReferenceType = in.ReferenceType
	journal.ReferenceID = in.ReferenceID
	journal.Date = in.Date
	journal.Status = status
	journal.BranchID = in.BranchID
	if err := row.Scan(&journal.ID, &journal.CreatedAt, &journal.UpdatedAt); err != nil {
		return Journal{}, err
	}
	return journal, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, cost_center_id, debit, credit)
VALUES ($1,$2,$3,$4,$5)`, journalID, line.AccountID, nullIntPtr(line.CostCenterID), toNumeric(line.Debit), toNumeric(line.Credit)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteJournalLines(ctx context.Context, journalID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_id=$1`, journalID)
	return err
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, journalID int64) (Journal, error) {
	var j Journal
	err := r.tx.QueryRow(ctx, `SELECT id, reference, reference_type, reference_id, journal_date, status, branch_id, posted_at, posted_by, created_at, updated_at
FROM journals WHERE id=$1 FOR UPDATE`, journalID).
		Scan(&j.ID, &j.Reference, &j.ReferenceType, &j.ReferenceID, &j.Date, &j.Status, &j.BranchID, &j.PostedAt, &j.PostedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, journalID int64) (Journal, []JournalLine, error) {
	var j Journal
	err := r.tx.QueryRow(ctx, `SELECT id, reference, reference_type, reference_id, journal_date, status, branch_id, posted_at, posted_by, created_at, updated_at
FROM journals WHERE id=$1`, journalID).
		Scan(&j.ID, &j.Reference, &j.ReferenceType, &j.ReferenceID, &j.Date, &j.Status, &j.BranchID, &j.PostedAt, &j.PostedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, nil, ErrJournalNotFound
		}
		return Journal{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_id, account_id, cost_center_id, debit, credit, created_at, updated_at
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, journalID)
	if err != nil {
		return Journal{}, nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.CostCenterID, &line.Debit, &line.Credit, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return Journal{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Journal{}, nil, err
	}
	return j, lines, nil
}

func (r *txRepository) MarkJournalPosted(ctx context.Context, journalID int64, postedBy int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, posted_by=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		journalID, JournalStatusPosted, nullInt(postedBy), postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateJournalStatus(ctx context.Context, journalID int64, status JournalStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, updated_at=NOW() WHERE id=$1`, journalID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateJournalHeader(ctx context.Context, journalID int64, in DraftInput) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET reference=$2, reference_type=$3, reference_id=$4, journal_date=$5, branch_id=$6, updated_at=NOW() WHERE id=$1`,
		journalID, in.Reference, in.ReferenceType, nullInt(in.ReferenceID), in.Date, nullIntPtr(in.BranchID))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) DeleteJournal(ctx context.Context, journalID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journals WHERE id=$1`, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, parent_id, opening_balance, branch_id, is_active, created_at, updated_at
FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, parent_id, opening_balance, branch_id, is_active, created_at, updated_at
FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (r *txRepository) ListCostCenters(ctx context.Context) ([]CostCenter, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, parent_id, is_active, created_at, updated_at
FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var centers []CostCenter
	for rows.Next() {
		var c CostCenter
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.ParentID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}
	return centers, rows.Err()
}

// AccountStatement lists posted movements for the account ordered by journal
// date then id, computing the running balance from the opening balance.
func (r *txRepository) AccountStatement(ctx context.Context, accountID int64, from, to time.Time) ([]StatementRow, error) {
	var opening float64
	var code, name string
	err := r.tx.QueryRow(ctx, `SELECT code, name, opening_balance FROM accounts WHERE id=$1`, accountID).
		Scan(&code, &name, &opening)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	// Payments reach the ledger through their receipt voucher, so the payment
	// reference is reachable only via vouchers.journal_id -> ar_payments.voucher_id.
	rows, err := r.tx.Query(ctx, `SELECT j.id, j.reference, j.journal_date, l.debit, l.credit, p.reference
FROM journal_lines l
JOIN journals j ON j.id = l.journal_id
LEFT JOIN vouchers v ON v.journal_id = j.id
LEFT JOIN ar_payments p ON p.voucher_id = v.id
WHERE l.account_id=$1 AND j.status='POSTED' AND j.journal_date >= $2 AND j.journal_date <= $3
ORDER BY j.journal_date ASC, j.id ASC, l.id ASC`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balance := opening
	var out []StatementRow
	for rows.Next() {
		row := StatementRow{AccountCode: code, AccountName: name}
		if err := rows.Scan(&row.JournalID, &row.Reference, &row.Date, &row.Debit, &row.Credit, &row.PaymentRef); err != nil {
			return nil, err
		}
		balance += row.Debit - row.Credit
		row.Balance = balance
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.OpeningBalance, &a.BranchID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
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
