package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"nxfs_api/internal/db"
	"nxfs_api/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	apply := flag.Bool("apply", false, "apply pending migrations")
	down := flag.Int("down", 0, "roll back N migrations")
	flag.Parse()

	if !*apply && *down == 0 {
		files, err := db.MigrationFiles()
		if err != nil {
			logger.Fatal("read embedded migrations", "error", err)
		}
		for _, name := range files {
			fmt.Println(name)
		}
		return
	}

	m, err := db.NewMigrator(dsn)
	if err != nil {
		logger.Fatal("create migrator", "error", err)
	}
	defer m.Close()

	if *down > 0 {
		err = m.Steps(-*down)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migration failed", "error", err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("read version", "error", err)
	}
	fmt.Printf("schema version=%d dirty=%v\n", v, dirty)
}
