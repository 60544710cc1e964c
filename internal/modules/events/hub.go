package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024 // the stream is push-only; inbound frames are discarded
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins (configure in prod)
}

// Event types pushed to subscribed clients.
const (
	EventPhotoStatus     = "photo.status"
	EventAnalysisSummary = "analysis.summary"
)

// Event is a real-time frame pushed to clients watching a report.
type Event struct {
	Type     string `json:"type"`
	ReportID string `json:"report_id"`
	PhotoID  string `json:"photo_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
	Analyzed int    `json:"analyzed,omitempty"`
	Failed   int    `json:"failed,omitempty"`
}

// connection is a single WebSocket client, bound for its whole lifetime to
// the report it was opened for. Ownership was checked before the upgrade.
type connection struct {
	conn     *websocket.Conn
	send     chan []byte
	reportID string
}

// Hub manages all active WebSocket connections
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]bool
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[*connection]bool),
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[c] {
		delete(h.connections, c)
		close(c.send)
	}
}

// Broadcast sends an event to every connection watching its report.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.reportID == event.ReportID {
			select {
			case c.send <- data:
			default:
				// Client too slow, skip
			}
		}
	}
}

// PhotoStatus pushes one photo transition to the report's subscribers. This is
// the method the photo and analysis services see through their notifier
// interfaces.
func (h *Hub) PhotoStatus(reportID, photoID, status, errMsg string) {
	h.Broadcast(&Event{
		Type:     EventPhotoStatus,
		ReportID: reportID,
		PhotoID:  photoID,
		Status:   status,
		Error:    errMsg,
	})
}

// AnalysisSummary pushes the aggregate result of an analysis run.
func (h *Hub) AnalysisSummary(reportID string, analyzed, failed int) {
	h.Broadcast(&Event{
		Type:     EventAnalysisSummary,
		ReportID: reportID,
		Analyzed: analyzed,
		Failed:   failed,
	})
}

// ServeWS registers a new connection watching reportID and blocks until it
// disconnects.
func (h *Hub) ServeWS(conn *websocket.Conn, reportID string) {
	c := &connection{
		conn:     conn,
		send:     make(chan []byte, 256),
		reportID: reportID,
	}

	h.register(c)

	go h.writePump(c)
	h.readPump(c) // blocks until disconnect
}

// readPump exists to surface disconnects and answer pings; client frames
// carry no meaning and are dropped.
func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
