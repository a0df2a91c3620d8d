package ar

import (
	"fmt"
	"time"
)

// minInstallmentAmount rejects schedules whose per-installment base rounds to
// effectively nothing.
const minInstallmentAmount = 0.01

// ScheduleEntry is one planned installment before persistence.
type ScheduleEntry struct {
	Seq     int       `json:"seq"`
	DueDate time.Time `json:"due_date"`
	Amount  float64   `json:"amount"`
}

// GenerateSchedule splits total minus downPayment into n installments. The
// base amount is rounded to cents and the final installment absorbs the
// rounding difference, so the entries always sum to exactly the remaining
// amount. Due dates step from start by the interval; a down payment is due
// immediately and never appears as an entry. Validation fails fast with
// ErrInvalidScheduleParams before anything is written.
func GenerateSchedule(total, downPayment float64, n int, interval Interval, start time.Time) ([]ScheduleEntry, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidScheduleParams)
	}
	if downPayment < 0 || downPayment > total {
		return nil, fmt.Errorf("%w: down payment must be between 0 and total", ErrInvalidScheduleParams)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: installment count must be at least 1", ErrInvalidScheduleParams)
	}
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: unknown interval %q", ErrInvalidScheduleParams, interval)
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrInvalidScheduleParams)
	}

	remaining := round2(total - downPayment)
	base := round2(remaining / float64(n))
	if base < minInstallmentAmount {
		return nil, fmt.Errorf("%w: per-installment amount rounds below %.2f", ErrInvalidScheduleParams, minInstallmentAmount)
	}
	// The last installment picks up whatever cent rounding left over.
	last := round2(remaining - base*float64(n-1))

	entries := make([]ScheduleEntry, 0, n)
	for seq := 1; seq <= n; seq++ {
		amount := base
		if seq == n {
			amount = last
		}
		entries = append(entries, ScheduleEntry{
			Seq:     seq,
			DueDate: interval.Step(start, seq-1),
			Amount:  amount,
		})
	}
	return entries, nil
}
