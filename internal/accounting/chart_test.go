package accounting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestBuildAccountTree(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset},
		{ID: 2, Code: "1100", Name: "Cash", Type: AccountTypeAsset, ParentID: ptr(1)},
		{ID: 3, Code: "1200", Name: "Bank", Type: AccountTypeAsset, ParentID: ptr(1)},
		{ID: 4, Code: "4000", Name: "Revenue", Type: AccountTypeRevenue},
	}

	roots, err := BuildAccountTree(accounts)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	require.Equal(t, "1000", roots[0].Code)
	require.Len(t, roots[0].Children, 2)
	require.Equal(t, "1100", roots[0].Children[0].Code)
	require.Equal(t, "1200", roots[0].Children[1].Code)
	require.Empty(t, roots[1].Children)
}

func TestBuildAccountTreeRejectsCycle(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "1000", ParentID: ptr(2)},
		{ID: 2, Code: "1100", ParentID: ptr(1)},
	}

	_, err := BuildAccountTree(accounts)
	require.ErrorIs(t, err, ErrChartCycle)
}

func TestBuildAccountTreeRejectsMissingParent(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "1000", ParentID: ptr(99)},
	}

	_, err := BuildAccountTree(accounts)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBuildCostCenterTree(t *testing.T) {
	centers := []CostCenter{
		{ID: 1, Code: "CC-01", Name: "Main Campus"},
		{ID: 2, Code: "CC-01-A", Name: "Language Dept", ParentID: ptr(1)},
	}

	roots, err := BuildCostCenterTree(centers)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	require.Equal(t, "CC-01-A", roots[0].Children[0].Code)
}

func TestAccountTypeValid(t *testing.T) {
	require.True(t, AccountTypeLiability.Valid())
	require.False(t, AccountType("SOMETHING").Valid())
}
