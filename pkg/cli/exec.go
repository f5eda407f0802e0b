package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/TechXTT/torm-session/pkg/runtime"
	"github.com/TechXTT/torm-session/pkg/session"
	"github.com/spf13/cobra"
)

// NewExecCmd builds the `exec` command.
func NewExecCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "exec SQL...",
		Short: "Run SQL statements in auto, local or readonly mode",
		Long: `Run SQL statements against the configured database.
  auto      every statement commits on its own
  local     all statements run in one transaction, rolled back if any fails
  readonly  statements are queries; their rows are printed tab-separated`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch mode {
			case "auto", "local", "readonly":
			default:
				return fmt.Errorf("unknown mode %q (want auto, local or readonly)", mode)
			}
			configPath, _ := cmd.Flags().GetString("config")
			e, err := open(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			return runtime.Using(cmd.Context(), e.pool, e.txOptions(), func(ctx context.Context, d *session.DB) error {
				return runStatements(ctx, d, mode, args, cmd.OutOrStdout())
			}, session.WithLogger(e.log))
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "auto", "Execution mode: auto, local or readonly")
	return cmd
}

func runStatements(ctx context.Context, d *session.DB, mode string, stmts []string, out io.Writer) error {
	switch mode {
	case "local":
		return d.LocalTx(ctx, func(s *session.Session) error {
			for _, stmt := range stmts {
				if err := execOne(ctx, s, stmt, out); err != nil {
					return err
				}
			}
			return nil
		})
	case "readonly":
		for _, stmt := range stmts {
			err := d.ReadOnly(ctx, func(s *session.Session) error {
				return queryOne(ctx, s, stmt, out)
			})
			if err != nil {
				return err
			}
		}
		return nil
	default:
		for _, stmt := range stmts {
			err := d.AutoCommit(ctx, func(s *session.Session) error {
				return execOne(ctx, s, stmt, out)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func execOne(ctx context.Context, s *session.Session, stmt string, out io.Writer) error {
	res, err := s.ExecContext(ctx, stmt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rows affected\n", n)
	return nil
}

func queryOne(ctx context.Context, s *session.Session, stmt string, out io.Writer) error {
	rows, err := s.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Join(cols, "\t"))
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		fields := make([]string, len(vals))
		for i, v := range vals {
			if v.Valid {
				fields[i] = v.String
			} else {
				fields[i] = "NULL"
			}
		}
		fmt.Fprintln(out, strings.Join(fields, "\t"))
	}
	return rows.Err()
}
