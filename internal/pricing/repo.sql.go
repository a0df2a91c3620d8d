package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads course prices from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const priceColumns = `id, course_id, branch_id, delivery_type, pricing_mode, price, session_price,
sessions_count, allow_installments, min_down_payment, max_installments, is_active, created_at, updated_at`

func (r *Repository) ActivePricesForCourse(ctx context.Context, courseID int64) ([]CoursePrice, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM course_prices
WHERE course_id=$1 AND is_active=TRUE ORDER BY id ASC`, priceColumns), courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPrices(rows)
}

func (r *Repository) ListPrices(ctx context.Context, courseID int64) ([]CoursePrice, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM course_prices
WHERE course_id=$1 ORDER BY id ASC`, priceColumns), courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPrices(rows)
}

func (r *Repository) InsertPrice(ctx context.Context, p CoursePrice) (CoursePrice, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO course_prices
(course_id, branch_id, delivery_type, pricing_mode, price, session_price, sessions_count,
 allow_installments, min_down_payment, max_installments, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`,
		p.CourseID, p.BranchID, p.DeliveryType, p.Mode, toNumeric(p.Price), toNumeric(p.SessionPrice),
		p.SessionsCount, p.AllowInstallments, toNumeric(p.MinDownPayment), p.MaxInstallments, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return CoursePrice{}, err
	}
	return p, nil
}

func scanPrices(rows pgx.Rows) ([]CoursePrice, error) {
	var out []CoursePrice
	for rows.Next() {
		var p CoursePrice
		if err := rows.Scan(&p.ID, &p.CourseID, &p.BranchID, &p.DeliveryType, &p.Mode, &p.Price, &p.SessionPrice,
			&p.SessionsCount, &p.AllowInstallments, &p.MinDownPayment, &p.MaxInstallments, &p.IsActive,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
