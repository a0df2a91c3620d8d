package pricing

import (
	"context"
	"errors"
)

// RepositoryPort loads active price rows for a course. The repository returns
// every active candidate; the service owns the cascade order.
type RepositoryPort interface {
	ActivePricesForCourse(ctx context.Context, courseID int64) ([]CoursePrice, error)
	InsertPrice(ctx context.Context, price CoursePrice) (CoursePrice, error)
	ListPrices(ctx context.Context, courseID int64) ([]CoursePrice, error)
}

// Service resolves the price book.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the pricing service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve walks the priority cascade and returns the first active match.
// Levels, most specific first:
//
//	1. course + branch + delivery type
//	2. course + branch, any delivery type (delivery null)
//	3. course + delivery type, any branch (branch null)
//	4. course only (both null)
//
// Rereading the same data always yields the same row. Resolution is a plain
// read, so it is never cached and takes no locks.
func (s *Service) Resolve(ctx context.Context, courseID int64, branchID *int64, deliveryType string) (CoursePrice, error) {
	candidates, err := s.repo.ActivePricesForCourse(ctx, courseID)
	if err != nil {
		return CoursePrice{}, err
	}
	levels := []func(CoursePrice) bool{
		func(p CoursePrice) bool {
			return matchBranch(p.BranchID, branchID) && matchDelivery(p.DeliveryType, deliveryType)
		},
		func(p CoursePrice) bool {
			return matchBranch(p.BranchID, branchID) && p.DeliveryType == nil
		},
		func(p CoursePrice) bool {
			return p.BranchID == nil && matchDelivery(p.DeliveryType, deliveryType)
		},
		func(p CoursePrice) bool {
			return p.BranchID == nil && p.DeliveryType == nil
		},
	}
	for _, match := range levels {
		for _, candidate := range candidates {
			if match(candidate) {
				return candidate, nil
			}
		}
	}
	return CoursePrice{}, ErrPriceNotFound
}

// Create validates and stores a new price row.
func (s *Service) Create(ctx context.Context, price CoursePrice) (CoursePrice, error) {
	if price.CourseID == 0 {
		return CoursePrice{}, errors.New("pricing: course id required")
	}
	if !price.Mode.Valid() {
		return CoursePrice{}, ErrInvalidMode
	}
	return s.repo.InsertPrice(ctx, price)
}

// List returns every price row (active or not) for the course.
func (s *Service) List(ctx context.Context, courseID int64) ([]CoursePrice, error) {
	return s.repo.ListPrices(ctx, courseID)
}

func matchBranch(rowBranch, wanted *int64) bool {
	if rowBranch == nil || wanted == nil {
		return false
	}
	return *rowBranch == *wanted
}

func matchDelivery(rowType *string, wanted string) bool {
	if rowType == nil || wanted == "" {
		return false
	}
	return *rowType == wanted
}
