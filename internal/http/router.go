// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting, and mounts both the REST
// surface and the WebSocket chat gateway.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/config"
	"github.com/codecraft-edu/comms-backend/internal/domain"
	"github.com/codecraft-edu/comms-backend/internal/http/handlers"
	"github.com/codecraft-edu/comms-backend/internal/http/middleware"
	"github.com/codecraft-edu/comms-backend/internal/repo"
	"github.com/codecraft-edu/comms-backend/internal/services"
	"github.com/codecraft-edu/comms-backend/internal/ws"
)

// userRepoShim adapts the repository free functions to the services.UserRepo
// interface. This keeps services decoupled from the concrete repo package
// while reusing existing functions.
type userRepoShim struct{}

// GetUser proxies repo.GetUser.
func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

// GetUserByToken proxies repo.GetUserByToken.
func (userRepoShim) GetUserByToken(ctx context.Context, db *gorm.DB, key string) (*domain.User, error) {
	return repo.GetUserByToken(ctx, db, key)
}

// roomRepoShim adapts the room repository free functions to services.RoomRepo.
type roomRepoShim struct{}

// GetRoom proxies repo.GetRoom.
func (roomRepoShim) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	return repo.GetRoom(ctx, db, id)
}

// GetOrCreateRoom proxies repo.GetOrCreateRoom.
func (roomRepoShim) GetOrCreateRoom(ctx context.Context, db *gorm.DB, a, b uint) (*domain.Room, error) {
	return repo.GetOrCreateRoom(ctx, db, a, b)
}

// messageRepoShim adapts the message repository free functions to
// services.MessageRepo.
type messageRepoShim struct{}

// CreateMessage proxies repo.CreateMessage.
func (messageRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, roomID string, senderID uint, content string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, roomID, senderID, content)
}

// ListMessages proxies repo.ListMessages.
func (messageRepoShim) ListMessages(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, roomID, limit)
}

// CountMessages proxies repo.CountMessages (pagination support).
func (messageRepoShim) CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	return repo.CountMessages(ctx, db, roomID)
}

// ListMessagesPage proxies repo.ListMessagesPage (pagination support).
func (messageRepoShim) ListMessagesPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Message, error) {
	return repo.ListMessagesPage(ctx, db, roomID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the REST surface under cfg.APIBasePath and the WebSocket gateway under
// /ws/chat.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, broker ws.Broker, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP; monitoring probes are exempt
	r.Use(func(c *gin.Context) {
		if p := c.Request.URL.Path; p == "/health" || p == "/metrics" {
			middleware.MarkRateBypass(c)
		}
		c.Next()
	})
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db
	authSvc := services.NewAuthService(db, userRepoShim{})
	roomSvc := services.NewRoomService(db, roomRepoShim{}, userRepoShim{})
	msgSvc := services.NewMessageService(db, messageRepoShim{})
	h := handlers.New(roomSvc, msgSvc)

	// WebSocket gateway. Mounted outside the REST group: the handshake
	// authenticates via query token (with anonymous fallback) rather than
	// the Authorization header, and a hijacked connection must not pass
	// through response-rewriting middleware like gzip.
	gw := ws.NewGateway(authSvc, roomSvc, msgSvc, broker, cfg.WS, cfg.CORS)
	r.GET("/ws/chat/:receiverId", gw.Handle)

	// REST surface, token-authenticated and gzip-compressed
	apiBase := cfg.APIBasePath // e.g. "/comms"
	api := groupWithPrefix(r, apiBase)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.TokenAuth(authSvc))
	{
		api.GET("/chat/:roomId", h.History)
		api.GET("/chat/:roomId/search", h.Search)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
