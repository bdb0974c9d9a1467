// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room model.
//
// Rooms are keyed by the canonical (ascending) user pair. The composite
// unique index ux_room_pair makes GetOrCreateRoom safe under concurrent
// first contacts: the losing insert falls back to a lookup, so exactly one
// row per pair ever exists.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// GetRoom fetches a room by its UUID, or ErrNotFound if missing.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	var r domain.Room
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOrCreateRoom returns the unique room for the unordered pair {a, b},
// creating it when absent. The pair is canonicalized ascending before any
// lookup or insert, so argument order never matters.
//
// Concurrency: two callers racing to create the same pair both end up with
// the same row. The loser's insert hits the ux_room_pair constraint and is
// retried as a lookup.
func GetOrCreateRoom(ctx context.Context, db *gorm.DB, a, b uint) (*domain.Room, error) {
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}

	var r domain.Room
	err := db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&r).Error
	if err == nil {
		return &r, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	r = domain.Room{
		ID:        uuid.NewString(),
		User1ID:   u1,
		User2ID:   u2,
		CreatedAt: time.Now().UTC(),
	}
	if insErr := db.WithContext(ctx).Create(&r).Error; insErr != nil {
		// Lost the race: the pair now exists, return the winner's row.
		var existing domain.Room
		lookErr := db.WithContext(ctx).
			Where("user1_id = ? AND user2_id = ?", u1, u2).
			First(&existing).Error
		if lookErr == nil {
			return &existing, nil
		}
		return nil, insErr
	}
	return &r, nil
}
