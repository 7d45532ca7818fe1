// seed inserts development accounts for local testing.
// Idempotent: existing accounts are reset to the dev password and verification state.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"market-auth/backend/internal/config"
	"market-auth/backend/internal/db"
	"market-auth/backend/internal/security"
	userdomain "market-auth/backend/internal/user/domain"
	userrepo "market-auth/backend/internal/user/repository"
)

const devPassword = "Passw0rd!"

type devAccount struct {
	name     string
	email    string
	verified bool
}

var devAccounts = []devAccount{
	{"Dev User", "dev@example.com", true},
	{"Pending User", "pending@example.com", false},
}

// accountStore is the part of the user repository seeding needs.
type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Save(ctx context.Context, u *userdomain.User) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if err := seedAccounts(ctx, userrepo.NewPostgresRepository(conn), devAccounts, passwordHash, time.Now()); err != nil {
		log.Fatal(err)
	}
	log.Println("Seed completed successfully.")
}

// seedAccounts creates each account, or resets an existing one to passwordHash and the account's
// verification state.
func seedAccounts(ctx context.Context, users accountStore, accounts []devAccount, passwordHash string, now time.Time) error {
	for _, a := range accounts {
		existing, err := users.GetByEmail(ctx, a.email)
		if err != nil {
			return fmt.Errorf("seed check %s: %w", a.email, err)
		}
		if existing != nil {
			existing.Name = a.name
			existing.PasswordHash = passwordHash
			existing.Verified = a.verified
			if err := users.Save(ctx, existing); err != nil {
				return fmt.Errorf("reset %s: %w", a.email, err)
			}
			log.Printf("%s already exists. Reset to dev password.", a.email)
			continue
		}
		u, err := userdomain.NewUser(a.name, a.email, passwordHash, now)
		if err != nil {
			return fmt.Errorf("build %s: %w", a.email, err)
		}
		u.Verified = a.verified
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("create %s: %w", a.email, err)
		}
		fmt.Printf("Login: %s / %s (verified: %v)\n", a.email, devPassword, a.verified)
	}
	return nil
}
