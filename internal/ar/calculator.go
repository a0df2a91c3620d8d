package ar

import "math"

// Totals is the full money breakdown of an invoice. Every field is derived
// from the inputs in one pass so no two of them can disagree.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	ManualDiscount float64 `json:"manual_discount"`
	PromoDiscount  float64 `json:"promo_discount"`
	TotalDiscount  float64 `json:"total_discount"`
	Taxable        float64 `json:"taxable"`
	Tax            float64 `json:"tax"`
	Total          float64 `json:"total"`
	Paid           float64 `json:"paid"`
	Due            float64 `json:"due"`
}

// CalculateTotals computes the invoice money pipeline. All inputs are clamped
// to zero or above. The combined discount never exceeds the subtotal; when it
// would, the manual discount keeps priority and the promo discount only
// absorbs the remaining headroom.
func CalculateTotals(subtotal, manualDiscount, promoDiscount, taxRatePercent, paid float64) Totals {
	subtotal = clampNonNegative(subtotal)
	manualDiscount = clampNonNegative(manualDiscount)
	promoDiscount = clampNonNegative(promoDiscount)
	taxRatePercent = clampNonNegative(taxRatePercent)
	paid = clampNonNegative(paid)

	if manualDiscount > subtotal {
		manualDiscount = subtotal
	}
	if manualDiscount+promoDiscount > subtotal {
		promoDiscount = subtotal - manualDiscount
	}
	totalDiscount := manualDiscount + promoDiscount

	taxable := subtotal - totalDiscount
	tax := round2(taxable * taxRatePercent / 100)
	total := taxable + tax
	if total < 0 {
		total = 0
	}
	if paid > total {
		paid = total
	}
	due := total - paid
	if due < 0 {
		due = 0
	}
	return Totals{
		Subtotal:       subtotal,
		ManualDiscount: manualDiscount,
		PromoDiscount:  promoDiscount,
		TotalDiscount:  totalDiscount,
		Taxable:        taxable,
		Tax:            tax,
		Total:          total,
		Paid:           paid,
		Due:            due,
	}
}

// DetermineStatus derives the invoice status from its totals.
func DetermineStatus(t Totals) InvoiceStatus {
	switch {
	case t.Due <= 0:
		return InvoiceStatusPaid
	case t.Paid > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusOpen
	}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
