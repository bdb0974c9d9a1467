// Package services – AuthService
//
// This file implements the AuthService, the identity collaborator of the
// chat core. It resolves opaque bearer tokens to users and looks up users
// by numeric id. Token issuance is not handled here; the surrounding
// platform owns account lifecycle and token creation.
//
// Resolution policy: an absent or unknown token degrades to the anonymous
// identity (nil user) instead of failing. Whether an anonymous identity is
// acceptable is a transport-level decision made by the caller; this service
// only reports what the token maps to.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// UserRepo defines the repository contract required by AuthService.
type UserRepo interface {
	// GetUser fetches a user by numeric id.
	GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error)

	// GetUserByToken resolves the owner of a token key.
	GetUserByToken(ctx context.Context, db *gorm.DB, key string) (*domain.User, error)
}

// AuthService resolves chat identities from bearer tokens and user ids.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo UserRepo
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, r UserRepo) *AuthService {
	return &AuthService{DB: db, Repo: r}
}

// ResolveToken maps a raw token key to its owning user. An empty or unknown
// key yields (nil, nil): the anonymous identity. Only infrastructure
// failures (DB errors) are returned as errors.
func (s *AuthService) ResolveToken(ctx context.Context, key string) (*domain.User, error) {
	if key == "" {
		return nil, nil
	}
	u, err := s.Repo.GetUserByToken(ctx, s.DB, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id, mapping a missing row to ErrUserNotFound.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
