package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/TechXTT/torm-session/internal/core"
	"github.com/TechXTT/torm-session/pkg/session"
	"go.uber.org/zap"
)

// Migration holds one versioned migration
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Manager applies and rolls back migrations. Each migration and its
// schema_migrations record run in one local transaction.
type Manager struct {
	db            *session.DB
	migrationsDir string
	migrations    []Migration
	log           *zap.Logger
	bindVar       string
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithDriver selects the placeholder syntax used for the version bookkeeping
// statements. The default is postgres.
func WithDriver(driver string) Option {
	return func(m *Manager) {
		if driver == "mysql" {
			m.bindVar = "?"
		}
	}
}

// NewManager loads migration files from the specified directory
func NewManager(db *session.DB, migrationsDir string, opts ...Option) (*Manager, error) {
	m := &Manager{db: db, migrationsDir: migrationsDir, log: zap.NewNop(), bindVar: "$1"}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadMigrations(); err != nil {
		return nil, err
	}
	return m, nil
}

var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// loadMigrations reads .up.sql/.down.sql files and organizes them by version
func (m *Manager) loadMigrations() error {
	entries, err := os.ReadDir(m.migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	tmp := map[int]*Migration{}
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		matches := migrationFile.FindStringSubmatch(fi.Name())
		if len(matches) != 4 {
			continue
		}
		ver, _ := strconv.Atoi(matches[1])
		data, err := os.ReadFile(filepath.Join(m.migrationsDir, fi.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", fi.Name(), err)
		}
		mig, exists := tmp[ver]
		if !exists {
			mig = &Migration{Version: ver, Name: matches[2]}
			tmp[ver] = mig
		}
		if matches[3] == "up" {
			mig.UpSQL = string(data)
		} else {
			mig.DownSQL = string(data)
		}
	}
	versions := make([]int, 0, len(tmp))
	for v := range tmp {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		m.migrations = append(m.migrations, *tmp[v])
	}
	return nil
}

// Migrations returns the loaded migrations in version order.
func (m *Manager) Migrations() []Migration {
	return m.migrations
}

// EnsureVersionTable creates schema_migrations if missing
func (m *Manager) EnsureVersionTable(ctx context.Context) error {
	return m.db.AutoCommit(ctx, func(s *session.Session) error {
		_, err := s.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INT PRIMARY KEY);`)
		return err
	})
}

func scanVersion(rows *sql.Rows) (sql.NullInt64, error) {
	var v sql.NullInt64
	err := rows.Scan(&v)
	return v, err
}

// currentVersion returns the highest applied migration version
func currentVersion(ctx context.Context, s *session.Session) (int, error) {
	v, err := core.NewQueryBuilder[sql.NullInt64]().
		From("schema_migrations").
		Select("MAX(version)").
		One(ctx, s, scanVersion)
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

// CurrentVersion returns the highest applied version, 0 when none.
func (m *Manager) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.EnsureVersionTable(ctx); err != nil {
		return 0, err
	}
	return session.AutoCommit(ctx, m.db, func(s *session.Session) (int, error) {
		return currentVersion(ctx, s)
	})
}

// Up applies all pending migrations
func (m *Manager) Up(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		m.log.Info("applying migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		err := m.db.LocalTx(ctx, func(s *session.Session) error {
			if _, err := s.ExecContext(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("apply up %d: %w", mig.Version, err)
			}
			if _, err := s.ExecContext(ctx, "INSERT INTO schema_migrations(version) VALUES("+m.bindVar+");", mig.Version); err != nil {
				return fmt.Errorf("record version %d: %w", mig.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the latest migration. It reports false when nothing was
// applied.
func (m *Manager) Down(ctx context.Context) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	if current == 0 {
		return false, nil
	}
	var toRoll *Migration
	for i := len(m.migrations) - 1; i >= 0; i-- {
		if m.migrations[i].Version == current {
			toRoll = &m.migrations[i]
			break
		}
	}
	if toRoll == nil {
		return false, fmt.Errorf("migration not found for version %d", current)
	}
	m.log.Info("rolling back migration", zap.Int("version", toRoll.Version), zap.String("name", toRoll.Name))
	err = m.db.LocalTx(ctx, func(s *session.Session) error {
		if _, err := s.ExecContext(ctx, toRoll.DownSQL); err != nil {
			return fmt.Errorf("apply down %d: %w", toRoll.Version, err)
		}
		if _, err := s.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = "+m.bindVar+";", toRoll.Version); err != nil {
			return fmt.Errorf("delete version %d: %w", toRoll.Version, err)
		}
		return nil
	})
	return err == nil, err
}

// Reset rolls back every applied migration, then applies them all again.
func (m *Manager) Reset(ctx context.Context) error {
	for {
		rolled, err := m.Down(ctx)
		if err != nil {
			return err
		}
		if !rolled {
			break
		}
	}
	return m.Up(ctx)
}

// Status describes which migrations are applied and which are pending.
func (m *Manager) Status(ctx context.Context) (string, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return "", err
	}
	lines := []string{fmt.Sprintf("Current version: %d", current)}
	for _, mig := range m.migrations {
		state := "pending"
		if mig.Version <= current {
			state = "applied"
		}
		lines = append(lines, fmt.Sprintf("%04d_%s: %s", mig.Version, mig.Name, state))
	}
	return strings.Join(lines, "\n"), nil
}
