// Package ws – per-connection session.
//
// A session binds one connection to one identity and one room for its whole
// lifetime and runs the message pipeline: parse the inbound frame, persist
// through the message store, publish the canonical stored row to the room's
// group. The session is a plain state machine whose transitions (onOpen,
// onFrame, onClose) are driven by the connection's read pump.
//
// Error policy: nothing a single frame does can kill the connection. Bad
// JSON, a missing field, validation failures, and storage errors all log
// and drop the frame; only transport errors end the session.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/codecraft-edu/comms-backend/internal/domain"
	"github.com/codecraft-edu/comms-backend/internal/services"
)

// MessageStore is the persistence collaborator of the pipeline.
type MessageStore interface {
	// Post validates and persists one message, returning its canonical
	// stored form (server-assigned identifier and timestamp).
	Post(ctx context.Context, senderID uint, roomID, content string) (*domain.Message, error)
}

// inboundFrame is the only wire format the pipeline accepts: a JSON object
// with a "msg" string. A pointer distinguishes a missing field from "".
type inboundFrame struct {
	Msg *string `json:"msg"`
}

// OutboundMessage is the canonical stored message as broadcast to every
// member of the room.
type OutboundMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Room       string    `json:"room"`
	Timestamp  time.Time `json:"timestamp"`
	Sender     uint      `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
}

// titleCaser formats sender display names for the broadcast payload.
var titleCaser = cases.Title(language.Und)

// session couples a client to its identity, room, and collaborators.
type session struct {
	client     *Client
	broker     Broker
	store      MessageStore
	senderID   uint
	senderName string
	roomID     string
	group      string
	log        zerolog.Logger
}

// newSession binds a client to user (nil for anonymous) and room.
func newSession(client *Client, broker Broker, store MessageStore, user *domain.User, room *domain.Room, log zerolog.Logger) *session {
	s := &session{
		client:   client,
		broker:   broker,
		store:    store,
		senderID: domain.AnonymousUserID,
		roomID:   room.ID,
		group:    services.GroupToken(room),
		log:      log,
	}
	if user != nil {
		s.senderID = user.ID
		s.senderName = titleCaser.String(user.FullName())
	}
	return s
}

// onOpen joins the room group. After it returns, every publish to the group
// reaches this connection.
func (s *session) onOpen() {
	s.broker.Join(s.group, s.client)
	connectionsActive.Inc()
	s.log.Info().Msg("chat session open")
}

// onFrame runs the pipeline for one inbound frame.
func (s *session) onFrame(ctx context.Context, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Msg == nil {
		framesTotal.WithLabelValues("malformed").Inc()
		s.log.Warn().Msg("dropping malformed frame")
		return
	}

	msg, err := s.store.Post(ctx, s.senderID, s.roomID, *frame.Msg)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) || errors.Is(err, services.ErrContentTooLong) {
			framesTotal.WithLabelValues("rejected").Inc()
			s.log.Warn().Err(err).Msg("dropping rejected frame")
			return
		}
		framesTotal.WithLabelValues("store_error").Inc()
		s.log.Error().Err(err).Msg("message persist failed; frame dropped")
		return
	}

	payload, err := json.Marshal(OutboundMessage{
		ID:         msg.ID,
		Content:    msg.Content,
		Room:       msg.RoomID,
		Timestamp:  msg.Timestamp,
		Sender:     msg.SenderID,
		SenderName: s.senderName,
	})
	if err != nil {
		framesTotal.WithLabelValues("store_error").Inc()
		s.log.Error().Err(err).Msg("marshal outbound message")
		return
	}

	if err := s.broker.Publish(ctx, s.group, payload); err != nil {
		s.log.Error().Err(err).Msg("publish failed")
		return
	}
	framesTotal.WithLabelValues("published").Inc()
}

// onClose removes the connection from the group before the session's
// goroutine exits, guaranteeing no delivery is attempted against a dead
// connection. Leave is idempotent, so racing cleanup paths are harmless.
func (s *session) onClose() {
	s.broker.Leave(s.group, s.client)
	s.client.closeSend()
	connectionsActive.Dec()
	s.log.Info().Msg("chat session closed")
}
