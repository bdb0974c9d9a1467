// Package services – MessageService
//
// This file implements the MessageService, the persistence collaborator of
// the message pipeline. It validates inbound content, persists messages,
// and serves ordered history reads for the REST surface.
//
// Validation failures (empty content, oversized content) are sentinel
// errors; the WebSocket session treats them as droppable frames rather than
// connection-fatal conditions.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// MessageRepo defines the repository contract required by MessageService.
type MessageRepo interface {
	// CreateMessage persists a message and returns its canonical stored form.
	CreateMessage(ctx context.Context, db *gorm.DB, roomID string, senderID uint, content string) (*domain.Message, error)

	// ListMessages returns a room's messages ordered oldest-first.
	ListMessages(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]domain.Message, error)

	// CountMessages returns the total number of messages in a room.
	CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error)

	// ListMessagesPage returns a page of messages ordered oldest-first.
	ListMessagesPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Message, error)
}

// MessageService validates, persists, and reads chat messages.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the message repository used by this service.
	Repo MessageRepo

	// MaxContentRunes caps accepted message content by rune length.
	// Zero disables the cap.
	MaxContentRunes int
}

// NewMessageService constructs a MessageService with a sane content cap.
func NewMessageService(db *gorm.DB, r MessageRepo) *MessageService {
	return &MessageService{
		DB:              db,
		Repo:            r,
		MaxContentRunes: 4000,
	}
}

// Post validates and persists one message, returning the stored row with
// its server-assigned identifier and timestamp.
//
// Content that is blank after trimming yields ErrEmptyContent; content over
// MaxContentRunes yields ErrContentTooLong. The content itself is stored
// as sent (no normalization beyond the blank check).
func (s *MessageService) Post(ctx context.Context, senderID uint, roomID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}
	return s.Repo.CreateMessage(ctx, s.DB, roomID, senderID, content)
}

// History returns all messages of a room ordered oldest-first.
func (s *MessageService) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	return s.Repo.ListMessages(ctx, s.DB, roomID, 0)
}

// HistoryPage returns a page of a room's messages ordered oldest-first,
// along with the total count. Invalid page/pageSize fall back to defaults.
func (s *MessageService) HistoryPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountMessages(ctx, s.DB, roomID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := s.Repo.ListMessagesPage(ctx, s.DB, roomID, offset, pageSize)
	return items, total, err
}
