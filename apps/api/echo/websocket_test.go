package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/apps/api/echo"
	"github.com/trezcool/edunex/core/notification"
	realtimesvc "github.com/trezcool/edunex/services/realtime"
)

func Test_notificationApi_websocket(t *testing.T) {
	var hub *realtimesvc.Hub
	a := setup(t, func(deps *echoapi.ServerDeps) {
		hub = realtimesvc.NewHub(deps.Logger, func(*http.Request) bool { return true })
		deps.Hub = hub
	})
	a.Notifications.SetPublisher(hub)
	alice := a.CreateStudent(t, "alice", "")
	prof := a.CreateInstructor(t, "prof")

	srv := httptest.NewServer(a.srv)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+a.token(t, alice), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Connections(alice.ID) == 1 }, time.Second, 10*time.Millisecond)

	rec := a.do(t, http.MethodPost, "/v1/notifications", a.token(t, prof), notification.NewNotification{
		UserID: alice.ID, Title: "Exam moved", Message: "Now in room 4", Type: notification.TypeAnnouncement,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg struct {
		Type    string                    `json:"type"`
		Payload notification.Notification `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "Exam moved", msg.Payload.Title)
}
