// Room HTTP handlers.
//
// This file exposes REST endpoints for chat room resources:
//   - GET /chat/{roomId}          (message history, paginated, ETag support)
//   - GET /chat/{roomId}/search   (rank messages in a room against a query)
//
// Handlers are transport-thin: they validate input, enforce room membership
// for the authenticated caller, call application services, and translate
// results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
	"github.com/codecraft-edu/comms-backend/internal/http/middleware"
	"github.com/codecraft-edu/comms-backend/internal/repo"
	"github.com/codecraft-edu/comms-backend/internal/search"
	"github.com/codecraft-edu/comms-backend/internal/services"
	"github.com/codecraft-edu/comms-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RoomService defines room lookup operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RoomService interface {
	// Get returns the room with the given id.
	Get(ctx context.Context, id string) (*domain.Room, error)
}

// MessageService defines message retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// History returns all messages of a room in send order.
	History(ctx context.Context, roomID string) ([]domain.Message, error)
	// HistoryPage returns a page of a room's messages and the total count.
	HistoryPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error)
}

//
// Handler wiring
//

// Handlers groups the REST endpoints for rooms and their messages.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	roomSvc RoomService
	msgSvc  MessageService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(roomSvc RoomService, msgSvc MessageService) *Handlers {
	return &Handlers{roomSvc: roomSvc, msgSvc: msgSvc}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// HistoryMessage is the JSON shape of one stored message, matching the
// payload broadcast over the WebSocket.
type HistoryMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
	Sender    uint   `json:"sender"`
}

// HistoryResponse wraps a page of messages and pagination information.
type HistoryResponse struct {
	Messages   []HistoryMessage `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// SearchResult is one ranked message from a room search.
type SearchResult struct {
	MessageID string  `json:"message_id"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// SearchResponse wraps the ranked results of a room search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

//
// Helpers
//

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 200
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// resolveMemberRoom loads the room and verifies that the authenticated caller
// participates in it. On failure it writes the error response and returns nil.
func (h *Handlers) resolveMemberRoom(c *gin.Context) *domain.Room {
	roomID := c.Param("roomId")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return nil
	}

	user, ok := middleware.UserFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "token authentication required")
		return nil
	}

	room, err := h.roomSvc.Get(c.Request.Context(), roomID)
	if err != nil {
		switch err {
		case services.ErrRoomNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return nil
	}
	if !room.IsMember(user.ID) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this room")
		return nil
	}
	return room
}

//
// Handlers
//

// History returns the paginated message history of a room the caller
// participates in.
//
// Responses:
//   - 200 with HistoryResponse
//   - 304 when If-None-Match matches the room's current ETag
//   - 400 malformed room id, 401 unauthenticated, 403 non-member,
//     404 unknown room, 500 on storage failure
func (h *Handlers) History(c *gin.Context) {
	ctx := c.Request.Context()

	room := h.resolveMemberRoom(c)
	if room == nil {
		return
	}

	// ETag pre-check (best effort).
	if db := h.statsDB(); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, room.ID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, room.ID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.HistoryPage(ctx, room.ID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeHistoryFailed, err.Error())
		return
	}

	msgs := make([]HistoryMessage, len(items))
	for i, m := range items {
		msgs[i] = HistoryMessage{
			ID:        m.ID,
			Content:   m.Content,
			Room:      m.RoomID,
			Timestamp: m.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			Sender:    m.SenderID,
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, HistoryResponse{
		Messages: msgs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// Search ranks a room's messages against the q query parameter using the
// in-memory similarity index. The index is built per request from the room's
// history; rooms are two-party conversations, so the corpus stays small.
//
// Query parameters:
//   - q: required, the search text
//   - k: optional, maximum results (default 5, capped at 20)
func (h *Handlers) Search(c *gin.Context) {
	ctx := c.Request.Context()

	room := h.resolveMemberRoom(c)
	if room == nil {
		return
	}

	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	k := utils.AtoiDefault(c.Query("k"), 5)
	if k > 20 {
		k = 20
	}

	items, err := h.msgSvc.History(ctx, room.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSearchFailed, err.Error())
		return
	}

	docs := make([]search.Document, len(items))
	for i, m := range items {
		docs[i] = search.Document{ID: m.ID, Text: m.Content}
	}
	idx := search.NewIndex(docs)

	ranked := idx.TopK(query, k)
	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = SearchResult{MessageID: r.MessageID, Snippet: r.Snippet, Score: r.Score}
	}

	ok(c, http.StatusOK, SearchResponse{Query: query, Results: results})
}

// statsDB exposes the concrete message service's DB handle for the ETag
// pre-check. Returns nil when the service is a test double.
func (h *Handlers) statsDB() *gorm.DB {
	if svc, ok := h.msgSvc.(*services.MessageService); ok {
		return svc.DB
	}
	return nil
}
