// Command seed loads demo accounts into a dev or test database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Troviny/troviny-backend/internal/security"
	"github.com/Troviny/troviny-backend/internal/storage"
)

func main() {
	env := getEnv("TROVINY_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: TROVINY_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "troviny")
	user := getEnv("POSTGRES_USER", "troviny")
	password := getEnv("POSTGRES_PASSWORD", "troviny")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	if err := storage.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedUsers(ctx, storage.New(pool)); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Credentials:")
	fmt.Println("  Username: demo      Password: demo123")
	fmt.Println("  Username: staff     Password: staff123")
	fmt.Println("  Username: inactive  Password: inactive123  (deactivated)")
}

func seedUsers(ctx context.Context, store *storage.Store) error {
	params := security.Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}

	seeds := []struct {
		user     storage.NewUser
		password string
		staff    bool
		inactive bool
	}{
		{
			user: storage.NewUser{
				Username: "demo",
				Email:    "demo@example.com",
				Country:  "DE",
				City:     "Berlin",
				Role:     "customer",
			},
			password: "demo123",
		},
		{
			user: storage.NewUser{
				Username: "staff",
				Email:    "staff@example.com",
				Role:     "support",
			},
			password: "staff123",
			staff:    true,
		},
		{
			user: storage.NewUser{
				Username: "inactive",
				Email:    "inactive@example.com",
			},
			password: "inactive123",
			inactive: true,
		},
	}

	for _, s := range seeds {
		hash, err := security.HashPassword(s.password, params)
		if err != nil {
			return err
		}
		s.user.PasswordHash = hash

		created, err := store.CreateUser(ctx, s.user)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateUsername) || errors.Is(err, storage.ErrDuplicateEmail) {
				continue // already seeded
			}
			return err
		}

		if s.staff || s.inactive {
			if err := store.SetFlags(ctx, created.ID, !s.inactive, s.staff); err != nil {
				return err
			}
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
