package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryPriceRepo struct {
	prices []CoursePrice
	nextID int64
}

func (r *memoryPriceRepo) ActivePricesForCourse(ctx context.Context, courseID int64) ([]CoursePrice, error) {
	var out []CoursePrice
	for _, p := range r.prices {
		if p.CourseID == courseID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPriceRepo) ListPrices(ctx context.Context, courseID int64) ([]CoursePrice, error) {
	var out []CoursePrice
	for _, p := range r.prices {
		if p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPriceRepo) InsertPrice(ctx context.Context, p CoursePrice) (CoursePrice, error) {
	r.nextID++
	p.ID = r.nextID
	r.prices = append(r.prices, p)
	return p, nil
}

func ptr[T any](v T) *T { return &v }

func seedCascadeRepo() *memoryPriceRepo {
	return &memoryPriceRepo{prices: []CoursePrice{
		{ID: 1, CourseID: 10, BranchID: nil, DeliveryType: nil, Mode: PricingModeCourseTotal, Price: 400, IsActive: true},
		{ID: 2, CourseID: 10, BranchID: nil, DeliveryType: ptr("ONLINE"), Mode: PricingModeCourseTotal, Price: 300, IsActive: true},
		{ID: 3, CourseID: 10, BranchID: ptr(int64(5)), DeliveryType: nil, Mode: PricingModeCourseTotal, Price: 250, IsActive: true},
		{ID: 4, CourseID: 10, BranchID: ptr(int64(5)), DeliveryType: ptr("ONLINE"), Mode: PricingModeCourseTotal, Price: 200, IsActive: true},
	}}
}

func TestResolveExactMatchWins(t *testing.T) {
	svc := NewService(seedCascadeRepo())

	price, err := svc.Resolve(context.Background(), 10, ptr(int64(5)), "ONLINE")
	require.NoError(t, err)
	require.Equal(t, int64(4), price.ID)
	require.Equal(t, 200.0, price.Price)
}

func TestResolveFallsBackToBranchWide(t *testing.T) {
	svc := NewService(seedCascadeRepo())

	price, err := svc.Resolve(context.Background(), 10, ptr(int64(5)), "ONSITE")
	require.NoError(t, err)
	require.Equal(t, int64(3), price.ID)
}

func TestResolveFallsBackToGlobalPerType(t *testing.T) {
	svc := NewService(seedCascadeRepo())

	price, err := svc.Resolve(context.Background(), 10, ptr(int64(99)), "ONLINE")
	require.NoError(t, err)
	require.Equal(t, int64(2), price.ID)
}

func TestResolveFallsBackToGlobalDefault(t *testing.T) {
	svc := NewService(seedCascadeRepo())

	price, err := svc.Resolve(context.Background(), 10, ptr(int64(99)), "ONSITE")
	require.NoError(t, err)
	require.Equal(t, int64(1), price.ID)
}

func TestResolveIgnoresInactiveRows(t *testing.T) {
	repo := seedCascadeRepo()
	for i := range repo.prices {
		if repo.prices[i].ID == 4 {
			repo.prices[i].IsActive = false
		}
	}
	svc := NewService(repo)

	price, err := svc.Resolve(context.Background(), 10, ptr(int64(5)), "ONLINE")
	require.NoError(t, err)
	require.Equal(t, int64(3), price.ID)
}

func TestResolveMissReturnsNotFound(t *testing.T) {
	svc := NewService(&memoryPriceRepo{})

	_, err := svc.Resolve(context.Background(), 77, nil, "")
	require.ErrorIs(t, err, ErrPriceNotFound)
}

func TestResolveIsDeterministic(t *testing.T) {
	svc := NewService(seedCascadeRepo())

	first, err := svc.Resolve(context.Background(), 10, ptr(int64(5)), "ONLINE")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Resolve(context.Background(), 10, ptr(int64(5)), "ONLINE")
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID)
	}
}

func TestCreateRejectsInvalidMode(t *testing.T) {
	svc := NewService(&memoryPriceRepo{})

	_, err := svc.Create(context.Background(), CoursePrice{CourseID: 1, Mode: PricingMode("FLAT")})
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestPerSessionAmount(t *testing.T) {
	p := CoursePrice{Mode: PricingModePerSession, SessionPrice: 25, SessionsCount: 8, Price: 999}
	require.Equal(t, 200.0, p.Amount())

	p.Mode = PricingModeCourseTotal
	require.Equal(t, 999.0, p.Amount())
}
