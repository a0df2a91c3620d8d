package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/academix-erp/academix/internal/shared"
)

// Service verifies API credentials.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates a "tokenID.secret" credential and returns the actor
// it belongs to. Every failure collapses into ErrInvalidCredentials so the
// response does not leak whether the token exists.
func (s *Service) Authenticate(ctx context.Context, credential string) (shared.Actor, error) {
	id, secret, ok := splitCredential(credential)
	if !ok {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	token, err := s.repo.FindToken(ctx, id)
	if err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if !token.IsActive {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	_ = s.repo.TouchToken(ctx, token.ID)
	return shared.Actor{ID: token.UserID, Name: token.UserName, BranchID: token.BranchID}, nil
}

func splitCredential(credential string) (string, string, bool) {
	credential = strings.TrimSpace(credential)
	id, secret, found := strings.Cut(credential, ".")
	if !found || id == "" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}
