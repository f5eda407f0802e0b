package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	db "github.com/TechXTT/torm-session"
	"github.com/TechXTT/torm-session/internal/core"
	"github.com/TechXTT/torm-session/pkg/runtime"
	"github.com/TechXTT/torm-session/pkg/session"
	"github.com/google/uuid"
)

type user struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}

// createUser inserts a user and its audit row. It must run inside a
// transaction opened by the caller.
func createUser(ctx context.Context, email string) (user, error) {
	return db.WithinTx(ctx, func(s *session.Session) (user, error) {
		u := user{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
		if _, err := s.ExecContext(ctx,
			`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`,
			u.ID, u.Email, u.CreatedAt,
		); err != nil {
			return user{}, fmt.Errorf("insert user: %w", err)
		}
		if _, err := s.ExecContext(ctx,
			`INSERT INTO audit_log (id, user_id, action) VALUES ($1, $2, 'signup')`,
			uuid.New(), u.ID,
		); err != nil {
			return user{}, fmt.Errorf("insert audit: %w", err)
		}
		return u, nil
	})
}

func main() {
	// 1) Connect to the database
	pool, err := runtime.Connect("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		panic(fmt.Errorf("connect: %w", err))
	}
	defer pool.Close()

	err = runtime.Using(context.Background(), pool, nil, func(ctx context.Context, d *session.DB) error {
		// 2) Both inserts commit together or not at all
		u, err := session.LocalTx(ctx, d, func(*session.Session) (user, error) {
			return createUser(ctx, "alice@example.com")
		})
		if err != nil {
			return err
		}
		fmt.Printf("✅ Created user %s\n", u.ID)

		// 3) Outside a transaction createUser is refused before touching the database
		if _, err := createUser(ctx, "bob@example.com"); !errors.Is(err, session.ErrTxNotActive) {
			return fmt.Errorf("expected ErrTxNotActive, got %v", err)
		}

		// 4) Query it back
		email, err := db.ReadOnly(ctx, func(s *session.Session) (string, error) {
			return core.NewQueryBuilder[string]().
				From("users").
				Select("email").
				Where("id = $1", u.ID).
				One(ctx, s, func(rows *sql.Rows) (string, error) {
					var email string
					err := rows.Scan(&email)
					return email, err
				})
		})
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		fmt.Printf("✅ Fetched user: %s\n", email)
		return nil
	})
	if err != nil {
		panic(err)
	}
}
