package ar

import "sort"

// AllocationResult reports how a payment was spread over installments.
type AllocationResult struct {
	Allocated   float64
	Unallocated float64
	// Touched holds the updated installments in allocation order. The first
	// entry is the one the payment record gets linked to.
	Touched []Installment
}

// Allocate spreads amount over the given installments, earliest due date
// first with the sequence number breaking ties. Each installment receives
// min(remaining, due); an installment whose paid amount reaches its amount
// flips to paid. Already-paid installments are skipped. The function is pure:
// it returns updated copies and never writes.
func Allocate(amount float64, installments []Installment) AllocationResult {
	ordered := make([]Installment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].DueDate.Equal(ordered[b].DueDate) {
			return ordered[a].Seq < ordered[b].Seq
		}
		return ordered[a].DueDate.Before(ordered[b].DueDate)
	})

	result := AllocationResult{Unallocated: amount}
	if amount <= 0 {
		return result
	}
	remaining := amount
	for idx := range ordered {
		if remaining <= 0 {
			break
		}
		inst := ordered[idx]
		if inst.Status == InstallmentStatusPaid {
			continue
		}
		due := inst.Due()
		if due <= 0 {
			continue
		}
		portion := due
		if remaining < due {
			portion = remaining
		}
		inst.PaidAmount = round2(inst.PaidAmount + portion)
		if inst.PaidAmount >= inst.Amount {
			inst.Status = InstallmentStatusPaid
		}
		remaining = round2(remaining - portion)
		result.Allocated = round2(result.Allocated + portion)
		result.Touched = append(result.Touched, inst)
	}
	result.Unallocated = round2(amount - result.Allocated)
	return result
}
