package cli

import (
	"database/sql"
	"fmt"

	"github.com/TechXTT/torm-session/internal/logging"
	"github.com/TechXTT/torm-session/pkg/config"
	"github.com/TechXTT/torm-session/pkg/runtime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func version() string {
	return "v0.6.0"
}

func help() string {
	return `TORM runs SQL against PostgreSQL or MySQL with explicit transaction control.
Every migration is applied inside its own transaction, and ad-hoc statements
can be run in auto-commit, local-transaction or read-only mode.
Examples:
  torm migrate up --config torm.yaml --dir migrations
  torm migrate status
  torm exec --mode local "INSERT INTO users(name) VALUES('alice')" "UPDATE stats SET users = users + 1"
  torm exec --mode readonly "SELECT id, name FROM users"`
}

// connect is swapped in tests.
var connect = runtime.Connect

// env is what every command needs once flags are parsed.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *sql.DB
}

func open(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	pool, err := connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) txOptions() *sql.TxOptions {
	if e.cfg.ReadOnlyTx {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

func (e *env) close() {
	_ = e.log.Sync()
	_ = e.pool.Close()
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version())
		},
	}
}

// NewRootCmd builds the top–level `torm` command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "torm",
		Short:         "TORM — migrations and transactional SQL execution",
		Long:          help(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "torm.yaml", "Config file (.yaml or .prisma)")
	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewExecCmd())
	root.AddCommand(NewVersionCmd())
	return root
}
