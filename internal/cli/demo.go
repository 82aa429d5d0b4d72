package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/guillermoBallester/querytrail/internal/adapter/postgres"
	"github.com/guillermoBallester/querytrail/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Table string
	Keep  bool
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive every recorded call shape against a live database",
		Long: `Wrap a pgx pool and run one statement through each interception path:
a cursor insert, a batched ExecMany, a CopyFrom and a Query readback. The
records written to the query log are printed at the end.

Examples:
  querytrail demo --database-url postgres://localhost:5432/postgres
  querytrail demo --database-url $DATABASE_URL --keep --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "querytrail_demo", "scratch table to create")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "keep the scratch table afterwards")

	return cmd
}

func runDemo(cmd *cobra.Command, opts *DemoOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.RequireDatabaseURL(); err != nil {
		return err
	}

	rec, err := a.recorder()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, a.cfg.DatabaseURL, postgres.PoolSettings{
		MaxConns:        a.cfg.PoolMaxConns,
		MinConns:        a.cfg.PoolMinConns,
		MaxConnLifetime: a.cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.logger.Info("database pool connected",
		slog.String("db.system", "postgresql"),
		slog.String("database", redactDSN(a.cfg.DatabaseURL)),
	)

	conn := postgres.Wrap(pool, rec,
		postgres.WithTracer(a.tracer),
		postgres.WithInstrumentation(a.inst),
	)
	defer conn.Close()

	started := time.Now()
	if err := demoScenario(ctx, conn, opts, a.logger); err != nil {
		return err
	}

	records, err := a.history().Search(ctx, domain.HistoryQuery{
		Range: domain.TimeRange{Name: "demo", Duration: time.Since(started) + time.Second},
		Limit: 50,
	})
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	return writeHistoryText(cmd.OutOrStdout(), records)
}

// demoScenario runs one statement through each interception path.
func demoScenario(ctx context.Context, conn *postgres.Connection, opts *DemoOptions, logger *slog.Logger) error {
	table := pgx.Identifier{opts.Table}
	name := table.Sanitize()
	insert := "INSERT INTO " + name + " (id, name, created_at) VALUES ($1, $2, $3)"
	now := time.Now().UTC()

	if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("dropping %s: %w", name, err)
	}
	if _, err := conn.Exec(ctx, "CREATE TABLE "+name+" (id int PRIMARY KEY, name text NOT NULL, created_at timestamptz)"); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	cur, err := conn.Cursor(ctx)
	if err != nil {
		return err
	}
	if _, err = cur.Execute(ctx, insert, 1, "alpha", now); err == nil {
		cur.CommandTag()
		err = cur.Err()
	}
	cur.Close()
	if err != nil {
		return fmt.Errorf("cursor insert: %w", err)
	}

	if _, err := conn.ExecMany(ctx, insert, [][]any{
		{2, "beta", now},
		{3, "gamma", nil},
	}); err != nil {
		return fmt.Errorf("exec many: %w", err)
	}

	copied, err := conn.CopyFrom(ctx, table, []string{"id", "name", "created_at"}, pgx.CopyFromRows([][]any{
		{4, "delta", now},
		{5, "epsilon", now},
	}))
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	rows, err := conn.Query(ctx, "SELECT id, name FROM "+name+" WHERE id >= $1 ORDER BY id", 1)
	if err != nil {
		return fmt.Errorf("reading back: %w", err)
	}
	n := 0
	for rows.Next() {
		n++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading back: %w", err)
	}

	logger.Info("demo finished", slog.Int64("copied", copied), slog.Int("rows", n))

	if !opts.Keep {
		if _, err := conn.Exec(ctx, "DROP TABLE "+name); err != nil {
			return fmt.Errorf("dropping %s: %w", name, err)
		}
	}
	return nil
}

// redactDSN masks the password in a connection string for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
