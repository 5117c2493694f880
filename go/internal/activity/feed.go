package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/outreach/go/internal/httpapi"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
)

// HeaderFeedSecret carries the shared feed secret. Browsers cannot set
// headers on a websocket handshake, so the token query parameter also works.
const HeaderFeedSecret = "X-Feed-Secret"

const feedTokenParam = "token"

// FeedConfig holds configuration for live feed connections
type FeedConfig struct {
	// Secret guards the feed route. Empty rejects every connection.
	Secret          string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      256,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Feed streams recorded activities to websocket clients watching an org.
type Feed struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*feedConn]bool
	upgrader    websocket.Upgrader
	config      FeedConfig
	broadcastCh chan broadcast
}

type feedConn struct {
	id    string
	orgID uuid.UUID
	conn  *websocket.Conn
	send  chan []byte
	feed  *Feed
}

type broadcast struct {
	orgID    uuid.UUID
	activity *models.Activity
}

func NewFeed(cfg FeedConfig) *Feed {
	return &Feed{
		connections: make(map[uuid.UUID]map[*feedConn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		config:      cfg,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (f *Feed) Start(ctx context.Context) {
	log.Info().Msg("activity feed started")
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			log.Info().Msg("activity feed shutting down")
			return
		case msg := <-f.broadcastCh:
			f.deliver(msg)
		}
	}
}

// BroadcastToOrg queues an activity for the org's subscribers. It never
// blocks the caller.
func (f *Feed) BroadcastToOrg(orgID uuid.UUID, a *models.Activity) {
	select {
	case f.broadcastCh <- broadcast{orgID: orgID, activity: a}:
	default:
		log.Warn().Str("org_id", orgID.String()).Msg("activity feed buffer full, dropping message")
	}
}

// RegisterRoutes mounts the feed at /ws/activity behind the feed secret.
func (f *Feed) RegisterRoutes(r chi.Router) {
	r.With(httpapi.RequireSecretQuery(HeaderFeedSecret, feedTokenParam, f.config.Secret)).
		Method(http.MethodGet, "/ws/activity", f)
}

// ServeHTTP upgrades GET /ws/activity?org_id=... to a feed connection.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.URL.Query().Get("org_id"))
	if err != nil {
		http.Error(w, "valid org_id is required", http.StatusBadRequest)
		return
	}
	if err := f.upgrade(w, r, orgID); err != nil {
		log.Error().Err(err).Str("org_id", orgID.String()).Msg("failed to open activity feed")
	}
}

func (f *Feed) upgrade(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) error {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &feedConn{
		id:    uuid.NewString(),
		orgID: orgID,
		conn:  conn,
		send:  make(chan []byte, f.config.SendBuffer),
		feed:  f,
	}
	f.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("org_id", orgID.String()).
		Msg("activity feed connection established")
	return nil
}

// Subscribers returns the number of open connections for an org.
func (f *Feed) Subscribers(orgID uuid.UUID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.connections[orgID])
}

func (f *Feed) register(c *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connections[c.orgID] == nil {
		f.connections[c.orgID] = make(map[*feedConn]bool)
	}
	f.connections[c.orgID][c] = true
}

func (f *Feed) unregister(c *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conns, ok := f.connections[c.orgID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(f.connections, c.orgID)
	}
}

func (f *Feed) deliver(msg broadcast) {
	data, err := json.Marshal(msg.activity)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal activity for feed")
		return
	}

	var slow []*feedConn
	f.mu.RLock()
	for c := range f.connections[msg.orgID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	f.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.id).Msg("feed connection too slow, closing")
		f.unregister(c)
		c.conn.Close()
	}
}

func (f *Feed) closeAll() {
	f.mu.Lock()
	var all []*feedConn
	for _, conns := range f.connections {
		for c := range conns {
			all = append(all, c)
		}
	}
	f.mu.Unlock()
	for _, c := range all {
		f.unregister(c)
	}
}

func (c *feedConn) writePump() {
	ticker := time.NewTicker(c.feed.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.feed.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("feed write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; the feed is server-to-client.
func (c *feedConn) readPump() {
	defer func() {
		c.feed.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.feed.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.feed.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.feed.config.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected feed close")
			}
			return
		}
	}
}
