// Package domain defines the persistence models for users, auth tokens,
// chat rooms, and messages. These types are mapped with GORM and form the
// core data layer of the comms backend.
package domain

import (
	"strings"
	"time"
)

// User types. Mirrors the role split of the surrounding course platform.
const (
	UserTypeStudent = "STUDENT"
	UserTypeTeacher = "TEACHER"
)

// AnonymousUserID is the sentinel identity assigned to connections that
// present no token or an unknown token. It never exists as a users row.
const AnonymousUserID uint = 0

// User represents a platform participant. Account lifecycle (registration,
// password handling) is owned by the user-management service; this backend
// only reads users to resolve chat identities.
//
// Fields:
//   - ID: numeric primary key, the canonical chat identity.
//   - Username: unique login name.
//   - FirstName / LastName: display name parts.
//   - UserType: "STUDENT" or "TEACHER" (enforced by DB constraint).
//   - PhotoURL: optional avatar location.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Username  string    `json:"username"   gorm:"type:varchar(150);not null;uniqueIndex"`
	FirstName string    `json:"first_name" gorm:"type:varchar(50);not null"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(50);not null"`
	UserType  string    `json:"user_type"  gorm:"type:varchar(10);not null;default:'STUDENT';check:user_type IN ('STUDENT','TEACHER')"`
	PhotoURL  string    `json:"photo_url"  gorm:"type:varchar(200)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// FullName joins the first and last name with a single space, trimming
// the result when either part is empty.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Token is an opaque bearer token mapping a token key to its owning user.
// Token issuance and revocation belong to the auth service; this backend
// only performs lookups.
type Token struct {
	Key       string    `json:"key"        gorm:"type:varchar(40);primaryKey"`
	UserID    uint      `json:"user_id"    gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`

	// User is the token owner. Tokens are cascade-deleted with the user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Token.
func (Token) TableName() string { return "tokens" }

// Room is the unique conversation channel between two distinct users.
// Exactly one room exists per unordered user pair; the pair is stored
// canonically with User1ID < User2ID and guarded by a composite unique
// index so concurrent first contacts cannot produce duplicates.
//
// Rooms are immutable after creation (only their messages grow) and are
// never deleted by this backend.
//
// The participant columns carry no users FK: the anonymous sentinel
// identity has no users row, yet may be a room participant.
type Room struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	User1ID   uint      `json:"user1_id"   gorm:"not null;uniqueIndex:ux_room_pair,priority:1"`
	User2ID   uint      `json:"user2_id"   gorm:"not null;uniqueIndex:ux_room_pair,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "rooms" }

// IsMember reports whether userID is one of the two room participants.
func (r Room) IsMember(userID uint) bool {
	return userID == r.User1ID || userID == r.User2ID
}

// OtherUser returns the participant that is not userID. When userID is not
// a member, User1ID is returned.
func (r Room) OtherUser(userID uint) uint {
	if userID == r.User1ID {
		return r.User2ID
	}
	return r.User1ID
}

// Message is a single chat utterance. Messages are immutable once stored;
// the timestamp and identifier are server-assigned at persistence time.
//
// Anonymous participants store AnonymousUserID as the sender; there is no
// users FK on SenderID so those rows remain valid.
type Message struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	RoomID    string    `json:"room"      gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	SenderID  uint      `json:"sender"    gorm:"not null;index"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"index:idx_room_msgs,priority:2"`

	// Room is the owning conversation. Messages are cascade-deleted if
	// their room is removed out-of-band.
	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
