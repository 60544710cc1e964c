package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/:id", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		go hub.ServeWS(conn, c.Param("id"))
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *Hub) connCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func readEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) (*Event, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return &evt, nil
}

func TestHub_PhotoStatusReachesOnlySubscribedReport(t *testing.T) {
	hub := NewHub()
	base := startHubServer(t, hub)

	connA := dial(t, base+"/ws/report-a")
	connB := dial(t, base+"/ws/report-b")

	require.Eventually(t, func() bool { return hub.connCount() == 2 },
		time.Second, 10*time.Millisecond)

	hub.PhotoStatus("report-a", "photo-1", "analyzing", "")

	evt, err := readEvent(t, connA, time.Second)
	require.NoError(t, err)
	assert.Equal(t, EventPhotoStatus, evt.Type)
	assert.Equal(t, "report-a", evt.ReportID)
	assert.Equal(t, "photo-1", evt.PhotoID)
	assert.Equal(t, "analyzing", evt.Status)

	// The connection watching report-b must see nothing.
	_, err = readEvent(t, connB, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestHub_AllWatchersOfAReportReceive(t *testing.T) {
	hub := NewHub()
	base := startHubServer(t, hub)

	conn1 := dial(t, base+"/ws/report-a")
	conn2 := dial(t, base+"/ws/report-a")

	require.Eventually(t, func() bool { return hub.connCount() == 2 },
		time.Second, 10*time.Millisecond)

	hub.AnalysisSummary("report-a", 3, 1)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		evt, err := readEvent(t, conn, time.Second)
		require.NoError(t, err)
		assert.Equal(t, EventAnalysisSummary, evt.Type)
		assert.Equal(t, "report-a", evt.ReportID)
		assert.Equal(t, 3, evt.Analyzed)
		assert.Equal(t, 1, evt.Failed)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	base := startHubServer(t, hub)

	conn := dial(t, base+"/ws/report-a")
	require.Eventually(t, func() bool { return hub.connCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return hub.connCount() == 0 },
		time.Second, 10*time.Millisecond)
}
