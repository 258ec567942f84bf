package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"nxfs_api/internal/db"
	"nxfs_api/internal/domain"
	"nxfs_api/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openDB skips the test unless DATABASE_URL points at a disposable database.
func openDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := db.RunMigrations(dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func createUser(t *testing.T, pool *pgxpool.Pool, prefix string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:       fmt.Sprintf("%s-%d@nxfs.test", prefix, time.Now().UnixNano()),
		DisplayName: prefix,
		IsActive:    true,
	}
	if err := repository.NewUserRepository(pool).Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
