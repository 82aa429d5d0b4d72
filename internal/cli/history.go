package cli

import (
	"fmt"

	"github.com/guillermoBallester/querytrail/internal/core/domain"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// queryFlags are the history filters shared by history and stats.
type queryFlags struct {
	Range  string
	Type   string
	Caller string
	Source string
	Where  string
}

func (f *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Range, "range", "all", "time window: 1h, 24h, 7d, all or a Go duration")
	fs.StringVar(&f.Type, "type", "all", "statement type: select, insert, update, delete, create, other, all")
	fs.StringVar(&f.Caller, "caller", "", "only records from this caller host name")
	fs.StringVar(&f.Source, "source", "", "only records from this source: cursor, cursor_bulk, bulk_api, bulk_api_bulk")
	fs.StringVar(&f.Where, "where", "", "raw SQLite predicate AND-ed with the other filters")
}

func (f *queryFlags) query() (domain.HistoryQuery, error) {
	var q domain.HistoryQuery

	r, err := domain.ParseTimeRange(f.Range)
	if err != nil {
		return q, err
	}
	typ, err := domain.ParseStatementType(f.Type)
	if err != nil {
		return q, err
	}
	q.Range, q.Type, q.Caller, q.Where = r, typ, f.Caller, f.Where

	if f.Source != "" {
		src, err := domain.ParseSource(f.Source)
		if err != nil {
			return q, err
		}
		q.Source = src
	}
	return q, nil
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	queryFlags
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded statements, newest first",
		Long: `List statements from the query log, newest first.

Examples:
  querytrail history --range 24h
  querytrail history --type insert --source bulk_api_bulk
  querytrail history --caller web-1 --limit 10 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	opts.queryFlags.register(cmd.Flags())
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of records")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	if opts.Limit < 1 {
		return fmt.Errorf("invalid limit %d: must be positive", opts.Limit)
	}
	q, err := opts.query()
	if err != nil {
		return err
	}
	q.Limit = opts.Limit

	ctx := cmd.Context()
	a, err := newApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.history().Search(ctx, q)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	return writeHistoryText(cmd.OutOrStdout(), records)
}

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	queryFlags
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the query log",
		Long: `Summarise the query log: totals, queries per hour, unique callers,
counts by statement type and source, the most frequent statements and the
busiest callers. Accepts the same filters as history.

Examples:
  querytrail stats --range 7d
  querytrail stats --source cursor --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts)
		},
	}

	opts.queryFlags.register(cmd.Flags())

	return cmd
}

func runStats(cmd *cobra.Command, opts *StatsOptions) error {
	q, err := opts.query()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.history().Stats(ctx, q)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	return writeStatsText(cmd.OutOrStdout(), st)
}
