package auth

import "time"

// APIToken is an issued API credential. Only the bcrypt hash of the secret is
// stored; the plain secret is shown once at issue time.
type APIToken struct {
	ID         int64
	UserID     int64
	UserName   string
	Label      string
	SecretHash string
	BranchID   *int64
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
