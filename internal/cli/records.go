package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sensord/internal/display"
	"github.com/roach88/sensord/internal/reading"
	"github.com/roach88/sensord/internal/store"
)

// RecordView is the CLI representation of a stored record.
type RecordView struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temp"`
	Humidity    float64   `json:"humidity"`
	Lux         float64   `json:"lux"`
	Level       float64   `json:"level"`
	Motion      bool      `json:"ir"`
	Timestamp   time.Time `json:"timestamp"`
	Display     [2]string `json:"display"`
}

func newRecordView(rec reading.Record) RecordView {
	lines := display.FormatRecord(rec)
	return RecordView{
		ID:          rec.ID,
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		Lux:         rec.Lux,
		Level:       rec.Level,
		Motion:      rec.Motion,
		Timestamp:   rec.CreatedAt,
		Display:     [2]string{lines.Line1, lines.Line2},
	}
}

// String renders the record the way the display shows it.
func (v RecordView) String() string {
	return fmt.Sprintf("#%d %s  %s | %s",
		v.ID, v.Timestamp.UTC().Format(time.RFC3339), v.Display[0], v.Display[1])
}

// QueryOptions holds flags shared by the read-only store commands.
type QueryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored record",
		Long: `Show one stored record as the display would render it.

Example:
  sensord show --db ./sensor_data.db 42
  sensord show --db ./sensor_data.db 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent records",
		Long: `List the most recent stored records, newest first.

Example:
  sensord list --db ./sensor_data.db
  sensord list --db ./sensor_data.db --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum number of records")

	return cmd
}

// openExisting opens a store that must already exist; the query commands
// never create one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runShow(opts *QueryOptions, arg string, cmd *cobra.Command) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid record id %q: must be a positive integer", arg))
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, found, err := st.FetchByID(context.Background(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fetch record", err)
	}
	if !found {
		msg := fmt.Sprintf("record %d not found", id)
		_ = formatter.Error(errCodeNotFound, msg, map[string]int64{"id": id})
		return NewExitError(ExitFailure, msg)
	}

	return formatter.Success(newRecordView(rec))
}

func runList(opts *QueryOptions, cmd *cobra.Command) error {
	if opts.Limit < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must be at least 1", opts.Limit))
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Recent(context.Background(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list records", err)
	}

	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(views)
	}

	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No records")
		return nil
	}
	for _, v := range views {
		fmt.Fprintln(out, v)
	}

	total, err := st.Count(context.Background())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count records", err)
	}
	fmt.Fprintf(out, "Showing %d of %d records\n", len(views), total)
	return nil
}
