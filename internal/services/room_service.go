// Package services – RoomService
//
// This file implements the RoomService, which owns room identity. A room is
// the unique conversation channel between two distinct identities; its
// existence is lazy (created on first contact) and idempotent (the same
// unordered pair always yields the same room, no matter the argument order
// or how many callers race).
//
// The service also derives the transport-level group token used by the
// subscription broker to address all connections of a room. The derivation
// is deterministic and bijective: the room UUID with every '-' replaced by
// '_', prefixed with "chat_", which keeps the token inside conservative
// group-name alphabets while staying trivially reversible for debugging.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// RoomRepo defines the repository contract required by RoomService.
type RoomRepo interface {
	// GetRoom fetches a room by UUID.
	GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error)

	// GetOrCreateRoom returns the unique room for the unordered pair,
	// creating it atomically when absent.
	GetOrCreateRoom(ctx context.Context, db *gorm.DB, a, b uint) (*domain.Room, error)
}

// RoomService provides room-level operations: pair-canonical get-or-create,
// lookup, and group token derivation.
type RoomService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the room repository used by this service.
	Repo RoomRepo
	// Users is consulted to verify that non-anonymous participants exist.
	Users UserRepo
}

// NewRoomService constructs a RoomService.
func NewRoomService(db *gorm.DB, r RoomRepo, users UserRepo) *RoomService {
	return &RoomService{DB: db, Repo: r, Users: users}
}

// GetOrCreate returns the room between identities a and b, creating it on
// first contact. The pair is unordered: GetOrCreate(a, b) and
// GetOrCreate(b, a) always return the same room.
//
// Validation: a and b must differ (ErrSelfChat), and every participant
// other than the anonymous sentinel must exist in the user store
// (ErrUserNotFound).
func (s *RoomService) GetOrCreate(ctx context.Context, a, b uint) (*domain.Room, error) {
	if a == b {
		return nil, ErrSelfChat
	}
	for _, id := range []uint{a, b} {
		if id == domain.AnonymousUserID {
			continue
		}
		if _, err := s.Users.GetUser(ctx, s.DB, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}
	return s.Repo.GetOrCreateRoom(ctx, s.DB, a, b)
}

// Get fetches a room by UUID, mapping a missing row to ErrRoomNotFound.
func (s *RoomService) Get(ctx context.Context, id string) (*domain.Room, error) {
	r, err := s.Repo.GetRoom(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return r, nil
}

// GroupToken derives the broker group name for a room. The same room always
// maps to the same token.
func GroupToken(room *domain.Room) string {
	return "chat_" + strings.ReplaceAll(room.ID, "-", "_")
}
