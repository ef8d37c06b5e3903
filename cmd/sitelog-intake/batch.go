package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safesite-labs/sitelog-intake/internal/commit"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
	"github.com/safesite-labs/sitelog-intake/internal/extract/gemini"
	"github.com/safesite-labs/sitelog-intake/internal/intake"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
	"github.com/safesite-labs/sitelog-intake/internal/repository"
	"github.com/safesite-labs/sitelog-intake/internal/teams"
	"github.com/safesite-labs/sitelog-intake/internal/workspace"
)

var batchCommand = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Process every log sheet in a directory and commit the results",
	Long: `Scans the directory for pdf/jpg/jpeg/png files in name order, enqueues them,
extracts per-team records from each, and commits one entry per team. Sheets
whose extraction fails or yields nothing are reported and left for review.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchCmd,
}

var batchIncludeHidden bool

func init() {
	batchCommand.Flags().BoolVar(&batchIncludeHidden, "include-hidden", false, "Also pick up dot-files in the scan directory")
	rootCmd.AddCommand(batchCommand)
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}

	svc, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.Extractor.APIKey,
		Model:       cfg.Extractor.Model,
		Temperature: cfg.Extractor.Temperature,
		Timeout:     cfg.Extractor.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	q := queue.NewStore(logger)
	coord := extract.NewCoordinator(svc, q, cfg.Extractor.HazardPhrases, logger)
	ws := workspace.NewController(q, coord, logger)
	protocol := commit.NewProtocol(q, coord, ws, registry, store, logger)
	runner := intake.NewRunner(q, coord, ws, protocol, logger)

	payloads, stats, err := intake.ScanDirectory(args[0], !batchIncludeHidden)
	if err != nil {
		return err
	}
	logger.Info("batch.scan", "dir", args[0],
		"scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)
	if len(payloads) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No eligible documents found.")
		return nil
	}
	q.Enqueue(payloads)

	start := time.Now()
	results, runErr := runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.Shutdown(shutdownCtx)

	printResults(cmd.OutOrStdout(), results, time.Since(start))
	return runErr
}

func printResults(w io.Writer, results []intake.DocumentResult, elapsed time.Duration) {
	var committed, review, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "FAIL    %-40s %v\n", r.Filename, r.Err)
		case len(r.Committed) == 0:
			review++
			fmt.Fprintf(w, "REVIEW  %-40s no records extracted\n", r.Filename)
		default:
			committed += len(r.Committed)
			fmt.Fprintf(w, "OK      %-40s %d record(s): %v\n", r.Filename, len(r.Committed), r.Committed)
		}
	}
	fmt.Fprintf(w, "\n%d document(s), %d entr(ies) committed, %d left for review, %d failed in %s\n",
		len(results), committed, review, failed, elapsed.Round(time.Millisecond))
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.EntryStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return repository.NewMemoryStore(), func() {}, nil
	case "sqlite":
		s, err := repository.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := repository.OpenPostgres(ctx, cfg.Store, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func loadRegistry(cfg *common.Config, logger *slog.Logger) (*teams.Registry, error) {
	if cfg.Teams.RosterPath == "" {
		logger.Warn("batch.no_roster", "hint", "set TEAM_ROSTER_PATH to resolve teams against the site roster")
		return teams.NewRegistry(nil, logger), nil
	}
	roster, err := teams.LoadRoster(cfg.Teams.RosterPath, logger)
	if err != nil {
		return nil, err
	}
	return teams.NewRegistry(roster, logger), nil
}
