package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"nxfs_api/internal/config"
	"nxfs_api/internal/db"
	"nxfs_api/internal/repository"
	"nxfs_api/internal/service"
)

func main() {
	email := flag.String("email", "test@nxfs.local", "user email")
	name := flag.String("name", "tester", "display name")
	staff := flag.Bool("staff", false, "grant staff rights")
	flag.Parse()

	cfg := config.Load()

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	users := service.NewUserService(repository.NewUserRepository(pool), repository.NewDeviceRepository(pool), nil)
	u, err := users.EnsureUser(context.Background(), *email, *name, *staff)
	if err != nil {
		log.Fatalf("ensure user failed: %v", err)
	}
	log.Printf("user id=%d email=%s display_name=%s staff=%v\n", u.ID, u.Email, u.DisplayName, u.IsStaff)

	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)
	token, err := service.GenerateJWT(u.ID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Println(token)
}
