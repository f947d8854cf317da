package handlers

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/goalsync-api/internal/middleware"
	"github.com/arnold/goalsync-api/internal/models"
	enginesync "github.com/arnold/goalsync-api/internal/sync"
)

// Message types sent over the subscription socket
const (
	EventGoals = "goals"
	EventError = "error"
)

// WSEvent is the JSON message sent to a subscribed client
type WSEvent struct {
	Type       string        `json:"type"`
	SyncStatus string        `json:"syncStatus,omitempty"`
	Goals      []models.Goal `json:"goals"`
	Error      string        `json:"error,omitempty"`
}

// WebSocketUpgrade checks the upgrade request and validates the JWT, taken
// from the ?token= query param or the Authorization header.
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				tokenString = ""
			}
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		claims, err := middleware.ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("ownerId", claims.OwnerID)
		c.Locals("status", c.Query("status"))
		c.Locals("category", c.Query("category"))
		return c.Next()
	}
}

// HandleGoalSync drives one live goal subscription per socket. Closing the
// socket stops the owner's sync session.
func HandleGoalSync(c *websocket.Conn) {
	ownerID, ok := c.Locals("ownerId").(string)
	if !ok || ownerID == "" {
		c.Close()
		return
	}

	status, _ := c.Locals("status").(string)
	category, _ := c.Locals("category").(string)
	filters := models.GoalFilters{
		Statuses:   splitParam(status),
		Categories: splitParam(category),
	}

	// Engine callbacks fire from the sync goroutine; writes need the lock.
	var writeMu sync.Mutex
	send := func(event WSEvent) {
		msg, err := json.Marshal(event)
		if err != nil {
			log.Printf("WS marshal error: %v", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("WS write error: %v", err)
		}
	}

	err := Engine.Start(ownerID, filters,
		func(update enginesync.Update) {
			send(WSEvent{
				Type:       EventGoals,
				SyncStatus: string(update.Status),
				Goals:      update.Goals,
			})
		},
		func(err error) {
			send(WSEvent{Type: EventError, Error: err.Error()})
		},
	)
	if err != nil {
		c.Close()
		return
	}
	defer Engine.Stop(ownerID)

	// Keep the connection alive; the client sends pings/keepalives.
	for {
		_, _, err := c.ReadMessage()
		if err != nil {
			break
		}
	}
}
