package ar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateScheduleRoundingAbsorbedByLast(t *testing.T) {
	entries, err := GenerateSchedule(100, 0, 3, IntervalMonthly, date(2026, 1, 1))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, 33.33, entries[0].Amount)
	require.Equal(t, 33.33, entries[1].Amount)
	require.Equal(t, 33.34, entries[2].Amount)

	require.Equal(t, date(2026, 1, 1), entries[0].DueDate)
	require.Equal(t, date(2026, 2, 1), entries[1].DueDate)
	require.Equal(t, date(2026, 3, 1), entries[2].DueDate)

	var sum float64
	for _, e := range entries {
		sum += e.Amount
	}
	require.InDelta(t, 100.0, sum, 0.001)
}

func TestGenerateScheduleDownPaymentReducesRemaining(t *testing.T) {
	entries, err := GenerateSchedule(500, 200, 4, IntervalWeekly, date(2026, 6, 1))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		require.Equal(t, 75.0, e.Amount)
	}
	require.Equal(t, date(2026, 6, 1), entries[0].DueDate)
	require.Equal(t, date(2026, 6, 8), entries[1].DueDate)
	require.Equal(t, date(2026, 6, 22), entries[3].DueDate)
}

func TestGenerateScheduleBiweeklyAndQuarterlySteps(t *testing.T) {
	biweekly, err := GenerateSchedule(100, 0, 2, IntervalBiweekly, date(2026, 1, 1))
	require.NoError(t, err)
	require.Equal(t, date(2026, 1, 15), biweekly[1].DueDate)

	quarterly, err := GenerateSchedule(100, 0, 2, IntervalQuarterly, date(2026, 1, 31))
	require.NoError(t, err)
	require.Equal(t, date(2026, 5, 1), quarterly[1].DueDate)
}

func TestGenerateScheduleSumIsExact(t *testing.T) {
	entries, err := GenerateSchedule(999.97, 100, 7, IntervalMonthly, date(2026, 2, 15))
	require.NoError(t, err)
	var sum float64
	for _, e := range entries {
		sum = round2(sum + e.Amount)
	}
	require.Equal(t, 899.97, sum)
}

func TestGenerateScheduleValidation(t *testing.T) {
	start := date(2026, 1, 1)

	_, err := GenerateSchedule(0, 0, 3, IntervalMonthly, start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	_, err = GenerateSchedule(100, -1, 3, IntervalMonthly, start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	_, err = GenerateSchedule(100, 150, 3, IntervalMonthly, start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	_, err = GenerateSchedule(100, 0, 0, IntervalMonthly, start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	_, err = GenerateSchedule(100, 0, 3, Interval("DAILY"), start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	_, err = GenerateSchedule(100, 0, 3, IntervalMonthly, time.Time{})
	require.ErrorIs(t, err, ErrInvalidScheduleParams)

	// 0.05 over 20 installments rounds to a degenerate base
	_, err = GenerateSchedule(0.05, 0, 20, IntervalMonthly, start)
	require.ErrorIs(t, err, ErrInvalidScheduleParams)
}
