package pricing

import (
	"errors"
	"time"
)

// PricingMode enumerates how a course is priced.
type PricingMode string

const (
	PricingModeCourseTotal PricingMode = "COURSE_TOTAL"
	PricingModePerSession  PricingMode = "PER_SESSION"
	PricingModeBoth        PricingMode = "BOTH"
)

// Valid reports whether the mode is one of the closed set.
func (m PricingMode) Valid() bool {
	switch m {
	case PricingModeCourseTotal, PricingModePerSession, PricingModeBoth:
		return true
	}
	return false
}

// CoursePrice is one row of the price book. Branch and delivery type are
// nullable so one course can carry branch-specific, type-specific and global
// fallback rows at the same time.
type CoursePrice struct {
	ID                int64
	CourseID          int64
	BranchID          *int64
	DeliveryType      *string
	Mode              PricingMode
	Price             float64
	SessionPrice      float64
	SessionsCount     int
	AllowInstallments bool
	MinDownPayment    float64
	MaxInstallments   int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var (
	// ErrPriceNotFound indicates the cascade exhausted every level.
	ErrPriceNotFound = errors.New("pricing: no active price found for course")
	// ErrInvalidMode indicates an unknown pricing mode.
	ErrInvalidMode = errors.New("pricing: invalid pricing mode")
)

// Amount returns the effective charge for the row. Per-session rows multiply
// the session price by the configured session count.
func (p CoursePrice) Amount() float64 {
	switch p.Mode {
	case PricingModePerSession:
		return p.SessionPrice * float64(p.SessionsCount)
	default:
		return p.Price
	}
}
