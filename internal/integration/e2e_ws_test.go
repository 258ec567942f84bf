package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nxfs_api/internal/config"
	httpserver "nxfs_api/internal/http"
	"nxfs_api/internal/http/handlers"
	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/repository"
	"nxfs_api/internal/service"
	"nxfs_api/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestE2E_TaskCreatedPushedOverWS(t *testing.T) {
	pool := openDB(t)
	service.InitJWT("e2e-secret", time.Hour)
	middleware.InitRedisRateLimiter(nil)
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub()
	userRepo := repository.NewUserRepository(pool)
	h := &handlers.Handler{
		Tasks: service.NewTaskService(repository.NewTaskRepository(pool), hub),
		Users: service.NewUserService(userRepo, repository.NewDeviceRepository(pool), hub),
		Audit: service.NewAuditService(repository.NewAuditRepository(pool)),
	}
	cfg := &config.Config{APIRateLimit: 1000, APIRateWindow: time.Minute}

	r := gin.New()
	r.Use(middleware.RequestID())
	httpserver.RegisterRoutes(r, h, handlers.NewHealthHandler(pool, nil, "e2e"), hub, userRepo, cfg)
	srv := httptest.NewServer(r)
	defer srv.Close()

	u := createUser(t, pool, "e2e")
	token, err := service.GenerateJWT(u.ID)
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() ws.Event {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev ws.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return ev
	}
	if ev := read(); ev.Type != ws.MsgReady {
		t.Fatalf("expected ready, got %s", ev.Type)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/tasks", strings.NewReader(`{"title":"from e2e"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d", res.StatusCode)
	}

	if ev := read(); ev.Type != service.EventTaskCreated {
		t.Fatalf("expected %s, got %s", service.EventTaskCreated, ev.Type)
	}
}
