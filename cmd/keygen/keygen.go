// Command keygen provisions a project and prints its API key once. Only
// the key id and a bcrypt hash of the secret are stored, so a lost key
// means minting a fresh one.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/auth"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
)

func main() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is empty")
	}
	name := os.Getenv("PROJECT_NAME")
	if name == "" {
		name = "default"
	}
	limit := 0
	if raw := os.Getenv("PING_LOG_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("PING_LOG_LIMIT: %v", err)
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := pg.New(ctx, pg.Config{DSN: dsn})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	full, keyID, hash, err := auth.GenerateKey()
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	proj := &project.Project{Name: name, KeyID: keyID, KeyHash: hash, PingLogLimit: limit}
	if err := pg.NewProjectRepo(db).Create(ctx, proj); err != nil {
		log.Fatalf("create project: %v", err)
	}

	fmt.Printf("project %q created\n", name)
	fmt.Printf("  id:      %d\n", proj.ID)
	fmt.Printf("  code:    %s\n", proj.Code)
	fmt.Printf("  api key: %s\n", full)
}
