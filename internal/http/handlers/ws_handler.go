package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/meetingbots/backend/internal/auth"
	"github.com/meetingbots/backend/internal/config"
	"github.com/meetingbots/backend/internal/events"
	"github.com/meetingbots/backend/internal/repositories"
	"go.uber.org/zap"
)

// WSHub streams bot lifecycle events to websocket clients, one redis
// subscription per project with at least one open connection.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	projects   *repositories.ProjectRepo
	log        *zap.Logger

	ctx         context.Context
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	subscribed  map[uuid.UUID]bool
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, projects *repositories.ProjectRepo, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		projects:    projects,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
		subscribed:  make(map[uuid.UUID]bool),
	}
}

// Start pins the lifetime context used for redis subscriptions.
func (h *WSHub) Start(ctx context.Context) {
	h.ctx = ctx
}

func (h *WSHub) broadcast(projectID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[projectID] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// ensureSubscribed starts the project's redis subscription on first use. The
// subscription stays up for the process lifetime; idle ones just see no
// listeners.
func (h *WSHub) ensureSubscribed(projectID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribed[projectID] {
		return
	}
	h.subscribed[projectID] = true

	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.subscriber.Subscribe(ctx, events.ProjectStream(projectID), func(event events.Event) {
		h.broadcast(projectID, event)
	}); err != nil {
		h.log.Error("failed to subscribe to project stream",
			zap.String("project_id", projectID.String()), zap.Error(err))
		h.subscribed[projectID] = false
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	projectID, err := uuid.Parse(conn.Query("project_id"))
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing or invalid project_id"}`))
		conn.Close()
		return
	}

	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	project, err := h.projects.GetByID(ctx, projectID)
	if err != nil || project.OrganizationID != claims.OrganizationID {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"project not found"}`))
		conn.Close()
		return
	}

	h.ensureSubscribed(projectID)

	h.mu.Lock()
	h.connections[projectID] = append(h.connections[projectID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[projectID]
		for i, c := range conns {
			if c == conn {
				h.connections[projectID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[projectID]) == 0 {
			delete(h.connections, projectID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
