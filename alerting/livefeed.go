package alerting

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/alertengine/types"
)

const (
	liveFeedWriteTimeout = 5 * time.Second
	liveFeedClientQueue  = 32
)

var liveFeedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// LiveFeed is a best-effort websocket fan-out of newly-minted Alerts, for
// admin dashboards watching a tenant in real time. It is purely additive:
// no collaborator in §4.4 depends on it, and a slow or absent subscriber
// never affects alert production. Grounded on output/websocket.go's
// client-registry-plus-broadcast shape, trimmed to the parts that matter
// here — the teacher's ack/nack delivery protocol belongs to its own
// message-bus framework and has no equivalent for a one-way alert feed.
type LiveFeed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	logger  *slog.Logger
}

// NewLiveFeed creates an empty LiveFeed.
func NewLiveFeed(logger *slog.Logger) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{clients: make(map[*websocket.Conn]chan []byte), logger: logger}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it as a subscriber until the client disconnects.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := liveFeedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("livefeed upgrade failed", "error", err)
		return
	}
	f.register(conn)
}

func (f *LiveFeed) register(conn *websocket.Conn) {
	queue := make(chan []byte, liveFeedClientQueue)
	f.mu.Lock()
	f.clients[conn] = queue
	f.mu.Unlock()

	go f.writeLoop(conn, queue)
	go f.readLoop(conn)
}

// writeLoop forwards queued messages to the client until the queue is
// closed by unregister.
func (f *LiveFeed) writeLoop(conn *websocket.Conn, queue chan []byte) {
	defer conn.Close()
	for data := range queue {
		conn.SetWriteDeadline(time.Now().Add(liveFeedWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.unregister(conn)
			return
		}
	}
}

// readLoop's only job is to detect the client going away; this feed is
// one-way and never interprets client messages.
func (f *LiveFeed) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.unregister(conn)
			return
		}
	}
}

func (f *LiveFeed) unregister(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		close(queue)
	}
}

// Publish implements alerting.Publisher: fans alert out to every
// connected client. A client whose queue is full is dropped rather than
// allowed to stall the broadcast for everyone else.
func (f *LiveFeed) Publish(alert *types.Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		f.logger.Error("failed to marshal alert for livefeed", "error", err)
		return
	}

	f.mu.Lock()
	snapshot := make([]chan []byte, 0, len(f.clients))
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for conn, queue := range f.clients {
		snapshot = append(snapshot, queue)
		conns = append(conns, conn)
	}
	f.mu.Unlock()

	for i, queue := range snapshot {
		select {
		case queue <- data:
		default:
			f.logger.Warn("livefeed client queue full, dropping alert", "alert", alert.UUID)
			f.unregister(conns[i])
		}
	}
}

// Close disconnects every subscriber.
func (f *LiveFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, queue := range f.clients {
		close(queue)
		conn.Close()
		delete(f.clients, conn)
	}
}
