// Package ws – connection gateway.
//
// The gateway owns the handshake: it resolves the caller's identity from
// the query-string bearer token, resolves the counterpart from the route
// path, gets-or-creates the room between them, and only then upgrades the
// request to a WebSocket. A handshake that fails is refused with a plain
// HTTP error and never reaches the broker.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codecraft-edu/comms-backend/internal/config"
	"github.com/codecraft-edu/comms-backend/internal/domain"
	"github.com/codecraft-edu/comms-backend/internal/services"
)

// IdentityResolver resolves chat identities during the handshake.
type IdentityResolver interface {
	// ResolveToken maps a bearer token to a user; (nil, nil) is anonymous.
	ResolveToken(ctx context.Context, key string) (*domain.User, error)
}

// RoomResolver resolves the unique room between two identities.
type RoomResolver interface {
	GetOrCreate(ctx context.Context, a, b uint) (*domain.Room, error)
}

// Gateway upgrades chat handshakes and runs sessions.
type Gateway struct {
	auth     IdentityResolver
	rooms    RoomResolver
	store    MessageStore
	broker   Broker
	cfg      config.WSConfig
	upgrader websocket.Upgrader
}

// NewGateway wires the gateway to its collaborators. Origins are checked
// against the CORS allowlist; an empty allowlist accepts any origin.
func NewGateway(auth IdentityResolver, rooms RoomResolver, store MessageStore, broker Broker, wsCfg config.WSConfig, cors config.CORSConfig) *Gateway {
	allowed := make(map[string]struct{}, len(cors.AllowedOrigins))
	for _, o := range cors.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Gateway{
		auth:   auth,
		rooms:  rooms,
		store:  store,
		broker: broker,
		cfg:    wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle serves GET /ws/chat/:receiverId. The optional ?token= query
// parameter authenticates the caller; without it (or with an unknown key)
// the caller is the anonymous identity, accepted or refused per
// configuration.
func (g *Gateway) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	receiverID, err := strconv.ParseUint(c.Param("receiverId"), 10, 32)
	if err != nil || receiverID == 0 {
		handshakesTotal.WithLabelValues("refused_bad_request").Inc()
		refuse(c, http.StatusBadRequest, "bad_request", "receiver id must be a positive integer")
		return
	}

	user, err := g.auth.ResolveToken(ctx, c.Query("token"))
	if err != nil {
		handshakesTotal.WithLabelValues("failed_internal").Inc()
		refuse(c, http.StatusInternalServerError, "internal_error", "identity resolution failed")
		return
	}
	if user == nil && !g.cfg.AllowAnonymous {
		handshakesTotal.WithLabelValues("refused_forbidden").Inc()
		refuse(c, http.StatusForbidden, "forbidden", "authentication required")
		return
	}

	callerID := domain.AnonymousUserID
	if user != nil {
		callerID = user.ID
	}

	room, err := g.rooms.GetOrCreate(ctx, callerID, uint(receiverID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			handshakesTotal.WithLabelValues("refused_not_found").Inc()
			refuse(c, http.StatusNotFound, "not_found", "receiver not found")
		case errors.Is(err, services.ErrSelfChat):
			handshakesTotal.WithLabelValues("refused_bad_request").Inc()
			refuse(c, http.StatusBadRequest, "bad_request", "cannot chat with yourself")
		default:
			handshakesTotal.WithLabelValues("failed_internal").Inc()
			refuse(c, http.StatusInternalServerError, "internal_error", "room resolution failed")
		}
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		handshakesTotal.WithLabelValues("failed_upgrade").Inc()
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	handshakesTotal.WithLabelValues("accepted").Inc()

	sessionLog := log.With().
		Uint("user_id", callerID).
		Str("room_id", room.ID).
		Str("remote_ip", c.ClientIP()).
		Logger()

	client := NewClient(conn, g.cfg, sessionLog)
	sess := newSession(client, g.broker, g.store, user, room, sessionLog)

	// The request context dies when this handler returns, but the hijacked
	// connection outlives it. The session gets its own lifetime context.
	sessCtx, cancelSess := context.WithCancel(context.Background())

	sess.onOpen()
	go client.writePump()
	go func() {
		defer func() {
			sess.onClose()
			cancelSess()
			_ = conn.Close()
		}()
		client.readPump(func(raw []byte) {
			sess.onFrame(sessCtx, raw)
		})
	}()
}

// refuse writes the standard error envelope for a pre-upgrade failure.
func refuse(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
