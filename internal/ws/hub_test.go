package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var _ service.Publisher = (*Hub)(nil)

// stubUsers knows active users by id; staff ids are flagged as staff.
type stubUsers struct {
	staff    map[int64]bool
	inactive map[int64]bool
}

func (s stubUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if id >= 100 {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: id, IsActive: !s.inactive[id], IsStaff: s.staff[id]}, nil
}

func newServer(t *testing.T, hub *Hub, users UserLookup) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("ws-secret", time.Hour)
	r := gin.New()
	r.GET("/ws", HandleWS(hub, users, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()
	token, err := service.GenerateJWT(userID)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return ev
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishToUserReachesOnlyThatUser(t *testing.T) {
	hub := NewHub()
	srv := newServer(t, hub, nil)

	a := dial(t, srv, 1)
	b := dial(t, srv, 2)
	if ev := readEvent(t, a); ev.Type != MsgReady {
		t.Fatalf("expected ready, got %s", ev.Type)
	}
	if ev := readEvent(t, b); ev.Type != MsgReady {
		t.Fatalf("expected ready, got %s", ev.Type)
	}

	hub.PublishToUser(1, service.EventTaskCreated, map[string]int64{"id": 5})
	hub.Broadcast(service.EventDockerSynced, nil)

	ev := readEvent(t, a)
	if ev.Type != service.EventTaskCreated || ev.Timestamp.IsZero() {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev := readEvent(t, a); ev.Type != service.EventDockerSynced {
		t.Fatalf("expected broadcast, got %s", ev.Type)
	}
	// user 2 only sees the broadcast
	if ev := readEvent(t, b); ev.Type != service.EventDockerSynced {
		t.Fatalf("user 2 got %s", ev.Type)
	}
}

func TestPingPongAndUnregister(t *testing.T) {
	hub := NewHub()
	srv := newServer(t, hub, nil)

	conn := dial(t, srv, 7)
	readEvent(t, conn)
	waitFor(t, func() bool { return hub.Count(7) == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, conn); ev.Type != MsgPong {
		t.Fatalf("expected pong, got %s", ev.Type)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Count(7) == 0 })
}

func TestPublishToStaffSkipsRegularUsers(t *testing.T) {
	hub := NewHub()
	srv := newServer(t, hub, stubUsers{staff: map[int64]bool{1: true}})

	admin := dial(t, srv, 1)
	member := dial(t, srv, 2)
	readEvent(t, admin)
	readEvent(t, member)

	hub.PublishToStaff(service.EventUsageSynced, map[string]int{"synced": 3})
	hub.PublishToUser(2, service.EventTaskCreated, nil)

	if ev := readEvent(t, admin); ev.Type != service.EventUsageSynced {
		t.Fatalf("staff expected usage_synced, got %s", ev.Type)
	}
	// the first event user 2 sees is its own, not the staff push
	if ev := readEvent(t, member); ev.Type != service.EventTaskCreated {
		t.Fatalf("regular user got %s", ev.Type)
	}
}

func TestHandleWSRejectsUnknownOrInactiveUser(t *testing.T) {
	srv := newServer(t, NewHub(), stubUsers{inactive: map[int64]bool{4: true}})
	for _, id := range []int64{4, 100} {
		token, err := service.GenerateJWT(id)
		if err != nil {
			t.Fatal(err)
		}
		res, err := http.Get(srv.URL + "/ws?token=" + token)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("user %d: expected 401, got %d", id, res.StatusCode)
		}
	}
}

func TestHandleWSRejectsBadToken(t *testing.T) {
	srv := newServer(t, NewHub(), nil)
	res, err := http.Get(srv.URL + "/ws?token=nope")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}
