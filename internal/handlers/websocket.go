package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"taixiu-game-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams round announcements to connected clients: the
// live replacement for the bot's edited group messages.
type WebSocketHandler struct {
	engine *services.RoundEngine
	pot    *services.PotAccount
	bus    *services.EventBus
	hub    *wsHub
	log    *zap.SugaredLogger
}

type wsHub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan wsMessage
}

type wsClient struct {
	userID  int64
	isAdmin bool
	conn    *websocket.Conn
}

type wsMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`

	// adminOnly marks alerts that must not reach regular players.
	adminOnly bool
}

func NewWebSocketHandler(engine *services.RoundEngine, pot *services.PotAccount, bus *services.EventBus, log *zap.SugaredLogger) *WebSocketHandler {
	hub := &wsHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan wsMessage, 100),
	}

	h := &WebSocketHandler{
		engine: engine,
		pot:    pot,
		bus:    bus,
		hub:    hub,
		log:    log,
	}

	go hub.run()
	go h.pump()

	return h
}

// pump forwards engine events onto the hub.
func (h *WebSocketHandler) pump() {
	_, events := h.bus.Subscribe()
	for evt := range events {
		h.hub.broadcast <- wsMessage{
			Type:      string(evt.Type),
			Data:      evt.Data,
			Timestamp: evt.Timestamp,
			adminOnly: evt.Type == services.EventAlert || evt.Type == services.EventRequestCreated,
		}
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("failed to upgrade to websocket", "error", err)
		return
	}

	client := &wsClient{
		userID:  c.GetInt64("user_id"),
		isAdmin: c.GetBool("is_admin"),
		conn:    conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendSnapshot(client)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugw("websocket closed", "user", client.userID, "error", err)
			}
			break
		}

		if msg.Type == "PING" {
			client.conn.WriteJSON(wsMessage{Type: "PONG", Timestamp: time.Now().Unix()})
		}
	}
}

// sendSnapshot gives a fresh connection the current round and pot so the
// client can render without waiting for the next event.
func (h *WebSocketHandler) sendSnapshot(client *wsClient) {
	rs := h.engine.CurrentRound()

	client.conn.WriteJSON(wsMessage{
		Type: "SNAPSHOT",
		Data: gin.H{
			"round": gin.H{
				"id":        rs.ID,
				"status":    rs.Status,
				"closes_at": rs.ClosesAt,
			},
			"pot": h.pot.Balance(),
		},
		Timestamp: time.Now().Unix(),
	})
}

func (hub *wsHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true

		case client := <-hub.unregister:
			delete(hub.clients, client)

		case msg := <-hub.broadcast:
			for client := range hub.clients {
				if msg.adminOnly && !client.isAdmin {
					continue
				}
				client.conn.WriteJSON(msg)
			}
		}
	}
}
