package ar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateTotalsPlain(t *testing.T) {
	got := CalculateTotals(1000, 0, 0, 10, 0)
	require.Equal(t, 1000.0, got.Subtotal)
	require.Equal(t, 0.0, got.TotalDiscount)
	require.Equal(t, 100.0, got.Tax)
	require.Equal(t, 1100.0, got.Total)
	require.Equal(t, 1100.0, got.Due)
	require.Equal(t, InvoiceStatusOpen, DetermineStatus(got))
}

func TestCalculateTotalsManualDiscountPriority(t *testing.T) {
	// manual 60 + promo 60 exceeds the 100 subtotal; manual keeps its full 60
	// and promo only absorbs the remaining 40
	got := CalculateTotals(100, 60, 60, 5, 0)
	require.Equal(t, 60.0, got.ManualDiscount)
	require.Equal(t, 40.0, got.PromoDiscount)
	require.Equal(t, 100.0, got.TotalDiscount)
	require.Equal(t, 0.0, got.Taxable)
	require.Equal(t, 0.0, got.Tax)
	require.Equal(t, 0.0, got.Total)
	require.Equal(t, InvoiceStatusPaid, DetermineStatus(got))
}

func TestCalculateTotalsManualDiscountCappedAtSubtotal(t *testing.T) {
	got := CalculateTotals(100, 150, 30, 0, 0)
	require.Equal(t, 100.0, got.ManualDiscount)
	require.Equal(t, 0.0, got.PromoDiscount)
	require.Equal(t, 0.0, got.Total)
}

func TestCalculateTotalsClampsNegativeInputs(t *testing.T) {
	got := CalculateTotals(-50, -10, -10, -5, -20)
	require.Equal(t, 0.0, got.Subtotal)
	require.Equal(t, 0.0, got.Total)
	require.Equal(t, 0.0, got.Due)
}

func TestCalculateTotalsTaxRounding(t *testing.T) {
	// 333.33 * 7.5% = 24.99975, rounded to 25.00
	got := CalculateTotals(333.33, 0, 0, 7.5, 0)
	require.Equal(t, 25.0, got.Tax)
	require.Equal(t, 358.33, got.Total)
}

func TestCalculateTotalsPaidClampedToTotal(t *testing.T) {
	got := CalculateTotals(100, 0, 0, 0, 150)
	require.Equal(t, 100.0, got.Paid)
	require.Equal(t, 0.0, got.Due)
	require.Equal(t, InvoiceStatusPaid, DetermineStatus(got))
}

func TestDetermineStatusPartial(t *testing.T) {
	got := CalculateTotals(100, 0, 0, 0, 40)
	require.Equal(t, 60.0, got.Due)
	require.Equal(t, InvoiceStatusPartial, DetermineStatus(got))
}
