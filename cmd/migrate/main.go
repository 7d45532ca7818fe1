// migrate applies the embedded SQL migrations for the auth schema (users, refresh digests,
// single-use tokens, audit logs).
//
//	go run ./cmd/migrate                  apply all pending migrations
//	go run ./cmd/migrate -direction down  roll every migration back
//	go run ./cmd/migrate -list            print the embedded migration files
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"market-auth/backend/internal/config"
	"market-auth/backend/internal/db/migrate"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	direction := fs.String("direction", "up", "Migration direction: up or down")
	list := fs.Bool("list", false, "List embedded migration files and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		names, err := migrate.Files()
		if err != nil {
			return fmt.Errorf("list migrations: %w", err)
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}
	if *direction != "up" && *direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", *direction)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		return err
	}
	log.Printf("migrations %s: done", *direction)
	return nil
}
