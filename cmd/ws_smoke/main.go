package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"nxfs_api/internal/config"
	"nxfs_api/internal/db"
	"nxfs_api/internal/repository"
	"nxfs_api/internal/service"
	"nxfs_api/internal/ws"
)

// ws_smoke connects to a running server, creates a task over HTTP and waits
// for the matching task_created push.
func main() {
	cfg := config.Load()

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	users := service.NewUserService(repository.NewUserRepository(pool), repository.NewDeviceRepository(pool), nil)
	u, err := users.EnsureUser(context.Background(), "smoke@nxfs.local", "smoke", false)
	if err != nil {
		log.Fatalf("ensure smoke user: %v", err)
	}

	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)
	token, err := service.GenerateJWT(u.ID)
	if err != nil {
		log.Fatalf("gen token: %v", err)
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := fmt.Sprintf("127.0.0.1:%s", cfg.AppPort)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/ws?token="+token, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() ws.Event {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		var ev ws.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Fatalf("decode %s: %v", msg, err)
		}
		return ev
	}

	if ev := read(); ev.Type != ws.MsgReady {
		log.Fatalf("expected ready, got %s", ev.Type)
	}

	body, _ := json.Marshal(map[string]string{"title": "smoke " + time.Now().Format(time.RFC3339)})
	req, _ := http.NewRequest(http.MethodPost, "http://"+base+"/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("create task: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		log.Fatalf("create task: status %d", res.StatusCode)
	}

	for {
		ev := read()
		log.Printf("got %s", ev.Type)
		if ev.Type == service.EventTaskCreated {
			break
		}
	}
	log.Println("smoke test finished")
}
