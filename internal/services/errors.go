// Package services defines the business logic for identity resolution,
// rooms, and messages. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages, HTTP status codes, or WebSocket
// close codes is performed at the handler/gateway layer.
package services

import "errors"

var (
	// ErrUserNotFound indicates that a referenced user identity does not
	// exist in the user store.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrSelfChat is returned when both sides of a room request resolve to
	// the same identity; a room requires two distinct participants.
	ErrSelfChat = errors.New("cannot open a room with yourself")

	// ErrEmptyContent is returned when a message has no content after
	// trimming. Such frames are dropped, not fatal to the connection.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when message content exceeds the
	// configured rune limit.
	ErrContentTooLong = errors.New("message content too long")

	// ErrNotMember is returned when a user requests history for a room
	// they do not participate in.
	ErrNotMember = errors.New("not a member of this room")
)
