package cli

import (
	"context"

	"github.com/TechXTT/torm-session/pkg/migrate"
	"github.com/TechXTT/torm-session/pkg/runtime"
	"github.com/TechXTT/torm-session/pkg/session"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	var migrations string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|reset|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			e, err := open(configPath)
			if err != nil {
				return err
			}
			defer e.close()
			if migrations == "" {
				migrations = e.cfg.MigrationsDir
			}

			ctx := cmd.Context()
			return runtime.Using(ctx, e.pool, e.txOptions(), func(ctx context.Context, d *session.DB) error {
				mgr, err := migrate.NewManager(d, migrations, migrate.WithLogger(e.log), migrate.WithDriver(e.cfg.Driver))
				if err != nil {
					return err
				}
				switch args[0] {
				case "up":
					return mgr.Up(ctx)
				case "down":
					rolled, err := mgr.Down(ctx)
					if err != nil {
						return err
					}
					if !rolled {
						cmd.Println("No migrations to roll back.")
					}
					return nil
				case "reset":
					return mgr.Reset(ctx)
				case "status":
					status, err := mgr.Status(ctx)
					if err != nil {
						return err
					}
					cmd.Println(status)
				}
				return nil
			}, session.WithLogger(e.log))
		},
	}

	cmd.Flags().StringVar(&migrations, "dir", "", "Migrations directory (defaults to the configured one)")
	return cmd
}
