// Package websocket pushes domain events to connected browsers. Each
// connection belongs to one authenticated user and is subscribed to that
// user's topic on connect; further topics must pass an authorization check.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// SecurityTopic carries security alerts to callers holding the handler's
// security permission.
const SecurityTopic = "security"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one websocket connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	Topics []string
	Send   chan []byte
}

func newClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Topics: []string{events.UserTopic(userID)},
		Send:   make(chan []byte, sendBuffer),
	}
}

// Hub tracks clients by topic. It implements events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds client under its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addLocked(topic, client)
	}
}

// Unregister removes client everywhere and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if _, dup := h.clients[topic][client]; dup {
			continue
		}
		h.addLocked(topic, client)
		client.Topics = append(client.Topics, topic)
	}
}

// Unsubscribe drops topics from client. The client's own user topic is kept.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	own := events.UserTopic(client.UserID)
	drop := make(map[string]bool, len(topics))
	for _, t := range topics {
		if t != own {
			drop[t] = true
			h.removeLocked(t, client)
		}
	}

	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if !drop[t] {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) addLocked(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Publish sends evt once to every client subscribed to any of its topics.
// Clients whose buffer is full miss the event rather than block the publisher.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]bool)
	for _, topic := range evt.Topics() {
		for client := range h.clients[topic] {
			if sent[client] {
				continue
			}
			sent[client] = true
			select {
			case client.Send <- data:
			default:
				h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("websocket buffer full, event dropped")
			}
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Handler upgrades authenticated requests on GET /api/ws.
type Handler struct {
	hub          *Hub
	checker      auth.PermissionChecker
	securityPerm string
	upgrader     gorillawebsocket.Upgrader
	logger       zerolog.Logger
}

// NewHandler builds the upgrade handler. securityPerm is the permission a
// caller needs to follow SecurityTopic. allowedOrigins empty accepts any
// origin; otherwise the Origin header must match one entry.
func NewHandler(hub *Hub, checker auth.PermissionChecker, securityPerm string, allowedOrigins []string, logger zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:          hub,
		checker:      checker,
		securityPerm: securityPerm,
		logger:       logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wh.Connect)
}

// Connect upgrades the connection and starts the read and write pumps.
func (wh *Handler) Connect(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	ws, err := wh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		wh.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	client := newClient(p.ID)
	wh.hub.Register(client)

	// The request context ends when this handler returns.
	ctx := auth.WithPrincipal(context.Background(), p)
	go wh.writePump(client, ws)
	go wh.readPump(ctx, client, p, ws)
	return nil
}

// allowedTopics filters requested topics down to the ones p may receive.
func (wh *Handler) allowedTopics(ctx context.Context, p *auth.Principal, topics []string) []string {
	var out []string
	for _, t := range topics {
		switch t {
		case events.UserTopic(p.ID):
			out = append(out, t)
		case SecurityTopic:
			ok, err := wh.checker.HasPermission(ctx, p, wh.securityPerm)
			if err != nil {
				wh.logger.Warn().Err(err).Msg("websocket topic authorization failed")
				continue
			}
			if ok {
				out = append(out, t)
			}
		}
	}
	return out
}

func (wh *Handler) handleMessage(ctx context.Context, client *Client, p *auth.Principal, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		wh.hub.Subscribe(client, wh.allowedTopics(ctx, p, msg.Topics))
	case "unsubscribe":
		wh.hub.Unsubscribe(client, msg.Topics)
	}
}

func (wh *Handler) readPump(ctx context.Context, client *Client, p *auth.Principal, ws *gorillawebsocket.Conn) {
	defer func() {
		wh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		wh.handleMessage(ctx, client, p, msg)
	}
}

func (wh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
