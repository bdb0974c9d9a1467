package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// ----- Fakes -----

type fakeRoomRepo struct {
	rooms map[string]*domain.Room // canonical "a-b" key

	getRoom *domain.Room
	getErr  error

	calls int
}

func pairKey(a, b uint) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

func (r *fakeRoomRepo) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	return r.getRoom, r.getErr
}

func (r *fakeRoomRepo) GetOrCreateRoom(ctx context.Context, db *gorm.DB, a, b uint) (*domain.Room, error) {
	r.calls++
	if r.rooms == nil {
		r.rooms = make(map[string]*domain.Room)
	}
	key := pairKey(a, b)
	if room, ok := r.rooms[key]; ok {
		return room, nil
	}
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	room := &domain.Room{ID: "room-" + key, User1ID: u1, User2ID: u2}
	r.rooms[key] = room
	return room, nil
}

type fakeUserRepo struct {
	users  map[uint]*domain.User
	tokens map[string]*domain.User
	err    error
}

func (r *fakeUserRepo) GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetUserByToken(ctx context.Context, db *gorm.DB, key string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.tokens[key]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func knownUsers(ids ...uint) *fakeUserRepo {
	m := make(map[uint]*domain.User, len(ids))
	for _, id := range ids {
		m[id] = &domain.User{ID: id}
	}
	return &fakeUserRepo{users: m}
}

// ----- Tests -----

func TestGetOrCreate_OrderIndependent(t *testing.T) {
	repo := &fakeRoomRepo{}
	s := NewRoomService(nil, repo, knownUsers(3, 7))
	ctx := context.Background()

	r1, err := s.GetOrCreate(ctx, 7, 3)
	if err != nil {
		t.Fatalf("GetOrCreate(7,3): %v", err)
	}
	r2, err := s.GetOrCreate(ctx, 3, 7)
	if err != nil {
		t.Fatalf("GetOrCreate(3,7): %v", err)
	}
	if r1.ID != r2.ID {
		t.Fatalf("argument order changed room: %q vs %q", r1.ID, r2.ID)
	}
}

func TestGetOrCreate_SelfChatRejected(t *testing.T) {
	s := NewRoomService(nil, &fakeRoomRepo{}, knownUsers(5))

	if _, err := s.GetOrCreate(context.Background(), 5, 5); !errors.Is(err, ErrSelfChat) {
		t.Fatalf("expected ErrSelfChat, got %v", err)
	}
}

func TestGetOrCreate_UnknownUser(t *testing.T) {
	repo := &fakeRoomRepo{}
	s := NewRoomService(nil, repo, knownUsers(1))

	if _, err := s.GetOrCreate(context.Background(), 1, 99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repo must not be reached when a participant is unknown")
	}
}

func TestGetOrCreate_AnonymousParticipantAllowed(t *testing.T) {
	s := NewRoomService(nil, &fakeRoomRepo{}, knownUsers(4))

	r, err := s.GetOrCreate(context.Background(), domain.AnonymousUserID, 4)
	if err != nil {
		t.Fatalf("GetOrCreate with anonymous: %v", err)
	}
	if r.User1ID != domain.AnonymousUserID || r.User2ID != 4 {
		t.Fatalf("pair = %d/%d", r.User1ID, r.User2ID)
	}
}

func TestGetOrCreate_UserRepoErrorPropagates(t *testing.T) {
	sentinel := errors.New("db down")
	s := NewRoomService(nil, &fakeRoomRepo{}, &fakeUserRepo{err: sentinel})

	if _, err := s.GetOrCreate(context.Background(), 1, 2); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestGet_NotFoundMapsToErrRoomNotFound(t *testing.T) {
	repo := &fakeRoomRepo{getErr: gorm.ErrRecordNotFound}
	s := NewRoomService(nil, repo, knownUsers())

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestGroupToken_DeterministicAndTransportSafe(t *testing.T) {
	room := &domain.Room{ID: "141add05-4415-4938-b5a1-17e0d3171aff"}

	got := GroupToken(room)
	want := "chat_141add05_4415_4938_b5a1_17e0d3171aff"
	if got != want {
		t.Fatalf("GroupToken = %q; want %q", got, want)
	}
	if got != GroupToken(room) {
		t.Fatalf("derivation must be deterministic")
	}
}
