package realtimesvc_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/notification"
	logsvc "github.com/trezcool/edunex/services/logger"
	realtimesvc "github.com/trezcool/edunex/services/realtime"
)

func newHub(t *testing.T) (*realtimesvc.Hub, string) {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	hub := realtimesvc.NewHub(logger, func(*http.Request) bool { return true })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		_ = hub.ServeWS(w, r, id)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *realtimesvc.Hub, url string, userID int64, want int) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+strconv.FormatInt(userID, 10), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Connections(userID) == want }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_Publish(t *testing.T) {
	hub, url := newHub(t)
	phone := dial(t, hub, url, 1, 1)
	laptop := dial(t, hub, url, 1, 2)
	other := dial(t, hub, url, 2, 1)

	hub.Publish(1, notification.Notification{ID: 5, UserID: 1, Title: "Quiz graded", Type: notification.TypeGrade})

	for _, conn := range []*websocket.Conn{phone, laptop} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var msg struct {
			Type    string                    `json:"type"`
			Payload notification.Notification `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "notification", msg.Type)
		assert.EqualValues(t, 5, msg.Payload.ID)
		assert.Equal(t, "Quiz graded", msg.Payload.Title)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "user 2 must not receive user 1's notifications")
}

func TestHub_disconnect(t *testing.T) {
	hub, url := newHub(t)
	conn := dial(t, hub, url, 1, 1)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections(1) == 0 }, time.Second, 10*time.Millisecond)

	hub.Publish(1, notification.Notification{ID: 1}) // nobody listening
	hub.Close()
	late, _, err := websocket.DefaultDialer.Dial(url+"?user=1", nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err, "a closed hub hangs up")
	assert.Zero(t, hub.Connections(1))
}
