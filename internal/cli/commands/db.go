package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/config"
	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/migrate"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
)

var verbose bool

// isInteractive reports whether prompts can be shown
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// connect loads the configuration and opens a pool. Logs are discarded
// unless --verbose is set.
func connect(ctx context.Context) (*pool.Pool, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return nil, nil, err
		}
	}

	p, err := pool.Open(ctx, cfg.PoolConfig(), logger.Named("pool"))
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured database is reachable",
		Long: `Open a connection with the configured settings and report the dialect,
round trip latency and connection pool statistics.`,
		Example: `  # Ping the database from ./recordkit.yml
  recordkit ping

  # Ping with an explicit config file
  recordkit ping --config deploy/recordkit.yml`,
		RunE: runPing,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print connection logs")
	return cmd
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return err
	}
	latency := time.Since(start)

	out := cmd.OutOrStdout()
	successColor := color.New(color.FgGreen, color.Bold)
	successColor.Fprintln(out, "✓ Database reachable")
	fmt.Fprintln(out)

	stats := p.Stats()
	table := ui.NewKeyValueTable(out, noColor)
	table.AddRow("Dialect", p.Dialect().Name())
	table.AddRow("Database", cfg.Database.Name)
	table.AddRow("Latency", latency.Round(time.Microsecond).String())
	table.AddRow("Max connections", strconv.Itoa(stats.MaxOpenConnections))
	table.AddRow("Open connections", strconv.Itoa(stats.OpenConnections))
	table.AddRow("In use", strconv.Itoa(stats.InUse))
	table.AddRow("Idle", strconv.Itoa(stats.Idle))
	table.Render()

	return nil
}

// NewTablesCommand creates the tables command
func NewTablesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured database",
		RunE:  runTables,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print connection logs")
	return cmd
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	tables, err := migrate.NewInspector(p.DB(), p.Dialect()).Tables(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tables) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No tables found")
		return nil
	}

	table := ui.NewTable(out, noColor, "TABLE")
	for _, name := range tables {
		table.AddRow(name)
	}
	table.Render()
	return nil
}

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "Show the live columns of a table",
		Long: `Show the columns of a table as the database reports them, in ordinal
order. Without an argument on a terminal, pick the table from a list.`,
		Example: `  # Show the players table
  recordkit inspect players

  # Choose a table interactively
  recordkit inspect`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInspect,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print connection logs")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	inspector := migrate.NewInspector(p.DB(), p.Dialect())

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		if !isInteractive() {
			return fmt.Errorf("table name required\n\nUsage: recordkit inspect <table>")
		}
		tables, err := inspector.Tables(ctx)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return fmt.Errorf("the database has no tables")
		}
		prompt := &survey.Select{
			Message: "Select a table:",
			Options: tables,
		}
		if err := survey.AskOne(prompt, &name); err != nil {
			return err
		}
	}

	snap, err := inspector.Snapshot(ctx, name)
	if err != nil {
		return err
	}

	if !snap.Exists() {
		msg := fmt.Sprintf("table %s does not exist", name)
		if tables, err := inspector.Tables(ctx); err == nil {
			if suggestions := ui.Suggest(name, tables, 3); len(suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
			}
		}
		return errors.New(msg)
	}

	ui.RenderSnapshot(cmd.OutOrStdout(), snap, noColor)
	return nil
}
