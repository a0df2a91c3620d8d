package settings

import "errors"

// Setting keys consumed by the billing flow.
const (
	KeyDefaultCashAccount    = "accounting.default_cash_account"
	KeyDefaultARAccount      = "accounting.default_ar_account"
	KeyDefaultRevenueAccount = "accounting.default_revenue_account"
)

// DefaultAccounts bundles the ledger accounts automated postings rely on.
type DefaultAccounts struct {
	CashAccountID    int64
	ARAccountID      int64
	RevenueAccountID int64
}

// ErrConfigurationMissing indicates a required setting key is absent or the
// account it references does not exist or is inactive.
var ErrConfigurationMissing = errors.New("settings: required configuration missing")
