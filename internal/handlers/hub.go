package handlers

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
	"github.com/jefmud/species-ident/internal/utils"
)

const (
	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

// Hub fans ledger events out to connected leaderboard sockets, each followed
// by freshly computed totals. Writes happen on the hub's own goroutine so a
// slow socket never holds up the request that changed the ledger.
type Hub struct {
	// connID -> connection
	conns map[string]*websocket.Conn
	// connID -> metadata
	connMeta map[string]ConnMeta
	mu       sync.Mutex

	agg    *services.Aggregator
	outbox chan LeaderboardMessage
	done   chan struct{}
	once   sync.Once
}

type ConnMeta struct {
	UserID   int
	Username string
}

type LeaderboardMessage struct {
	Event       string              `json:"event"`
	LedgerEvent *models.LedgerEvent `json:"ledger_event,omitempty"`
	Leaderboard []models.UserTotal  `json:"leaderboard"`
	Online      []string            `json:"online"`
}

// NewHub starts the hub's writer. Call Close to stop it.
func NewHub(agg *services.Aggregator) *Hub {
	h := &Hub{
		conns:    make(map[string]*websocket.Conn),
		connMeta: make(map[string]ConnMeta),
		agg:      agg,
		outbox:   make(chan LeaderboardMessage, outboxSize),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case msg := <-h.outbox:
			h.Broadcast(msg)
		case <-h.done:
			return
		}
	}
}

// Close stops the writer; queued messages are dropped.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) Register(connID string, conn *websocket.Conn, userID int, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[connID] = conn
	h.connMeta[connID] = ConnMeta{UserID: userID, Username: username}
}

func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	delete(h.connMeta, connID)
}

// Count returns the number of connected sockets
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// OnlineUsers lists the usernames with at least one open socket, sorted.
func (h *Hub) OnlineUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool, len(h.connMeta))
	online := make([]string, 0, len(h.connMeta))
	for _, meta := range h.connMeta {
		if meta.Username == "" || seen[meta.Username] {
			continue
		}
		seen[meta.Username] = true
		online = append(online, meta.Username)
	}
	sort.Strings(online)
	return online
}

// Broadcast writes to every connection. The hub lock is held for the whole
// fan-out so writes to one connection never interleave; each write is bounded
// by writeTimeout.
func (h *Hub) Broadcast(message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.conns {
		// a failed write is cleaned up by that connection's read loop
		utils.LogError(conn.SetWriteDeadline(time.Now().Add(writeTimeout)), "Broadcast")
		utils.LogError(utils.SendJSON(conn, message), "Broadcast")
	}
}

// SendTo writes to a single connection, serialized with broadcasts.
func (h *Hub) SendTo(conn *websocket.Conn, message interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return utils.SendJSON(conn, message)
}

func (h *Hub) message(ctx context.Context, event string, ev *models.LedgerEvent) (LeaderboardMessage, error) {
	totals, err := h.agg.UserTotals(ctx)
	if err != nil {
		return LeaderboardMessage{}, err
	}
	return LeaderboardMessage{Event: event, LedgerEvent: ev, Leaderboard: totals, Online: h.OnlineUsers()}, nil
}

// Snapshot builds the message sent to a socket when it connects
func (h *Hub) Snapshot(ctx context.Context) (LeaderboardMessage, error) {
	return h.message(ctx, "leaderboard", nil)
}

// Publish implements services.EventSink. The message is queued for the
// writer; when the queue is full the event is dropped and logged.
func (h *Hub) Publish(ctx context.Context, ev models.LedgerEvent) error {
	if h.Count() == 0 {
		return nil
	}
	msg, err := h.message(ctx, ev.Event, &ev)
	if err != nil {
		return err
	}

	select {
	case h.outbox <- msg:
	default:
		log.Printf("leaderboard outbox full, dropping %s", ev.Event)
	}
	return nil
}
