package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler owns the live-update hub. It implements
// services.Broadcaster so the match engine can push state changes without
// knowing about connections.
type WebSocketHandler struct {
	accounts *services.AccountService
	hub      *WebSocketHub
}

type WebSocketHub struct {
	clients       map[string]*websocket.Conn
	subscriptions map[string]map[string]bool // match id -> user ids
	register      chan *Client
	unregister    chan *Client
	subscribe     chan *Subscription
	unsubscribe   chan *Subscription
	broadcast     chan *Message
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
}

type Subscription struct {
	UserID  string
	MatchID string
}

type Message struct {
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	MatchID string      `json:"match_id,omitempty"`
	Data    interface{} `json:"data"`
}

func NewWebSocketHandler(accounts *services.AccountService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:       make(map[string]*websocket.Conn),
		subscriptions: make(map[string]map[string]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *Subscription),
		unsubscribe:   make(chan *Subscription),
		broadcast:     make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		accounts: accounts,
		hub:      hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendBalance(c.Request.Context(), client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "SUBSCRIBE_MATCH":
		if matchID, ok := msg.Data.(string); ok {
			h.hub.subscribe <- &Subscription{UserID: client.UserID, MatchID: matchID}
		}
	case "UNSUBSCRIBE_MATCH":
		if matchID, ok := msg.Data.(string); ok {
			h.hub.unsubscribe <- &Subscription{UserID: client.UserID, MatchID: matchID}
		}
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	acct, err := h.accounts.Get(ctx, client.UserID)
	if err != nil {
		log.Printf("Failed to load account for WS: %v", err)
		return
	}

	msg := Message{
		Type: "BALANCE_UPDATE",
		Data: gin.H{
			"balance": acct.Balance,
			"xp":      acct.XP,
			"level":   acct.Level,
		},
	}

	client.Conn.WriteJSON(msg)
}

func (h *WebSocketHandler) sendPong(client *Client) {
	msg := Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	}

	client.Conn.WriteJSON(msg)
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.UserID] = client.Conn
			log.Printf("Client registered: %s", client.UserID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.UserID]; ok {
				delete(hub.clients, client.UserID)
				log.Printf("Client unregistered: %s", client.UserID)
			}
			for _, subs := range hub.subscriptions {
				delete(subs, client.UserID)
			}

		case sub := <-hub.subscribe:
			if hub.subscriptions[sub.MatchID] == nil {
				hub.subscriptions[sub.MatchID] = make(map[string]bool)
			}
			hub.subscriptions[sub.MatchID][sub.UserID] = true

		case sub := <-hub.unsubscribe:
			delete(hub.subscriptions[sub.MatchID], sub.UserID)

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

// broadcastMessage routes by narrowing scope: a user-addressed message goes
// to that user, a match-addressed one to the match's subscribers, anything
// else to every client.
func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.UserID != "" {
		if conn, ok := hub.clients[message.UserID]; ok {
			conn.WriteJSON(message)
		}
		return
	}

	if message.MatchID != "" {
		for userID := range hub.subscriptions[message.MatchID] {
			if conn, ok := hub.clients[userID]; ok {
				conn.WriteJSON(message)
			}
		}
		return
	}

	for _, conn := range hub.clients {
		conn.WriteJSON(message)
	}
}

func (h *WebSocketHandler) BroadcastMatchUpdate(matchID string, status models.MatchStatus, players []string) {
	msg := &Message{
		Type:    "MATCH_UPDATE",
		MatchID: matchID,
		Data: gin.H{
			"match_id":  matchID,
			"status":    status,
			"players":   players,
			"timestamp": time.Now().Unix(),
		},
	}

	h.hub.broadcast <- msg
}

func (h *WebSocketHandler) BroadcastMatchFinished(matchID, winnerID string, payout int64) {
	msg := &Message{
		Type:    "MATCH_FINISHED",
		MatchID: matchID,
		Data: gin.H{
			"match_id":  matchID,
			"winner_id": winnerID,
			"payout":    payout,
			"timestamp": time.Now().Unix(),
		},
	}

	h.hub.broadcast <- msg
}
