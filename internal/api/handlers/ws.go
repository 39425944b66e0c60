package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/config"
	ws "github.com/driftbyte/snapharbor/internal/websocket"
)

// WSHandler upgrades clients onto restore-progress rooms.
type WSHandler struct {
	cfg *config.Config
	hub *ws.Hub
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(cfg *config.Config, hub *ws.Hub) *WSHandler {
	return &WSHandler{cfg: cfg, hub: hub}
}

// HandleRestoreProgress subscribes the caller to one restore's progress room.
func (h *WSHandler) HandleRestoreProgress(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	restoreID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restore ID"})
		return
	}

	upgrader := buildUpgrader(h.cfg.Security.CORS.AllowedOrigins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade WebSocket: %v (origin=%s, restore=%s)", err, c.Request.Header.Get("Origin"), restoreID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "WebSocket upgrade failed"})
		return
	}

	client := &ws.Client{
		ID:       uuid.New().String(),
		UserID:   claims.UserID,
		Username: claims.Username,
		Conn:     conn,
		Room:     ws.RestoreRoom(restoreID),
		Send:     make(chan *ws.Message, 256),
		Hub:      h.hub,
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return isOriginAllowed(origin, allowedOrigins)
		},
	}
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}

	for _, allowedOrigin := range allowedOrigins {
		normalized := strings.TrimSpace(allowedOrigin)
		if normalized == "" {
			continue
		}
		if normalized == "*" || normalized == "0.0.0.0/0" || normalized == origin {
			return true
		}
	}

	return false
}
