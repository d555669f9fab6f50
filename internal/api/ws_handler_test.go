package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/worker"
)

type stubValidator struct {
	id  auth.Identity
	err error
}

func (s stubValidator) ValidateAccessToken(string) (auth.Identity, error) {
	return s.id, s.err
}

type fakeFeed struct {
	ch    chan []byte
	err   error
	users chan uint
}

func (f *fakeFeed) Subscribe(_ context.Context, userID uint) (<-chan []byte, error) {
	f.users <- userID
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan []byte, 4), users: make(chan uint, 1)}
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr
}

func dialWs(t *testing.T, h *WsHandler, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	r := gin.New()
	r.GET("/ws", h.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func TestWs_RejectsInvalidToken(t *testing.T) {
	h := NewWsHandler(nil, stubValidator{err: errors.New("expired")}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"type": "auth", "token": "bad"}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestWs_RequiresAuthMessage(t *testing.T) {
	h := NewWsHandler(nil, stubValidator{id: auth.Identity{UserID: 1}}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"type": "hello"}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "auth required", closeErr.Text)
}

func TestWs_RejectsForeignOrigin(t *testing.T) {
	h := NewWsHandler(nil, stubValidator{}, nil, []string{"https://app.example.com"})

	_, resp, err := dialWs(t, h, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWs_ForwardsOnlyValidNotifications(t *testing.T) {
	feed := newFakeFeed()
	h := NewWsHandler(feed, stubValidator{id: auth.Identity{UserID: 7}}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gin.H{"type": "auth", "token": "ok"}))

	valid, err := json.Marshal(worker.Notification{
		Type:          worker.NotifyExport,
		Status:        worker.StatusCompleted,
		ResumeID:      "r1",
		CorrelationID: "cid-1",
	})
	require.NoError(t, err)
	feed.ch <- []byte("not json")
	feed.ch <- []byte(`{"type":"print","status":"completed"}`)
	feed.ch <- valid

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got worker.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, worker.NotifyExport, got.Type)
	assert.Equal(t, "r1", got.ResumeID)
	assert.Equal(t, "cid-1", got.CorrelationID)
	assert.Equal(t, uint(7), <-feed.users)
}

func TestWs_RejectsAccountThatMustChangePassword(t *testing.T) {
	h := NewWsHandler(newFakeFeed(), stubValidator{id: auth.Identity{UserID: 1, MustChangePassword: true}}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gin.H{"type": "auth", "token": "ok"}))

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "password change required", closeErr.Text)
}

func TestWs_FeedUnavailable(t *testing.T) {
	feed := newFakeFeed()
	feed.err = errors.New("redis down")
	h := NewWsHandler(feed, stubValidator{id: auth.Identity{UserID: 1}}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gin.H{"type": "auth", "token": "ok"}))

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)
}

func TestWs_ClosesWhenFeedEnds(t *testing.T) {
	feed := newFakeFeed()
	h := NewWsHandler(feed, stubValidator{id: auth.Identity{UserID: 1}}, nil, nil)

	conn, _, err := dialWs(t, h, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gin.H{"type": "auth", "token": "ok"}))
	<-feed.users
	close(feed.ch)

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}
