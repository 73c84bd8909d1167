package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webext-qa/intermittents/internal/builder"
	"github.com/webext-qa/intermittents/internal/config"
	"github.com/webext-qa/intermittents/internal/database"
	"github.com/webext-qa/intermittents/internal/model"
	"github.com/webext-qa/intermittents/internal/report"
	"github.com/webext-qa/intermittents/internal/watch"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [profile]",
		Short: "Build the disabled intermittent tests report",
		Long: `Report fetches the open intermittent-failure bugs of a profile, joins
them with the profile's notes spreadsheet and writes the report table.

The notes spreadsheet is a CSV file with a "Bug Number" column and the
optional "Test" and "Disabled on" columns. Bugs without a note are still
listed; their test name falls back to the bug summary.

Examples:
  # Build the default WebExtensions report as an HTML fragment
  intermittents report --notes notes.csv > report.html

  # Build a complete HTML page
  intermittents report -n notes.csv --standalone -o public/index.html

  # Build every configured profile into a directory
  intermittents report --all --output-dir reports/

  # Rebuild whenever the notes file is saved
  intermittents report -n notes.csv -o report.html --watch

Configuration file (.intermittents.yaml) example:
  tracker:
    url: https://bugzilla.mozilla.org
    api_key: ${BUGZILLA_API_KEY}
  defaults:
    notes: notes.csv
  profiles:
    android:
      notes: notes-android.csv
      components: ["WebExtensions: Android"]`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	// Input flags
	cmd.Flags().StringP("notes", "n", "",
		"Notes spreadsheet (CSV); overrides the selected profile's notes file")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .intermittents.yaml in current, XDG config or home directory)")

	// Tracker flags
	cmd.Flags().String("tracker-url", config.DefaultTrackerURL,
		"Bugzilla base URL")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for tracker requests (host:port)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout of the tracker search")

	// Output flags
	cmd.Flags().StringP("format", "f", config.FormatHTML,
		"Report format: html, markdown, json or text")
	cmd.Flags().Bool("standalone", false,
		"Write a complete HTML document instead of a fragment")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("output-dir", "",
		"Directory receiving one report per profile with --all")

	// Batch flags
	cmd.Flags().BoolP("all", "a", false,
		"Build every configured profile")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of profiles built at once with --all")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not store this run in the history database")
	cmd.Flags().String("data-dir", "",
		"Directory of the history database (default: XDG data directory)")

	cmd.Flags().BoolP("watch", "w", false,
		"Rebuild the report whenever the notes file changes")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runReport(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the config file, the environment and
// the command flags, in increasing order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit config file must exist; otherwise a missing file means
	// the built-in profile.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv()

	// Tracker flags only override the file when set explicitly.
	if cmd.Flags().Changed("tracker-url") {
		if cfg.TrackerURL, err = cmd.Flags().GetString("tracker-url"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("proxy") {
		if cfg.Proxy, err = cmd.Flags().GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	cfg.NotesPath, err = cmd.Flags().GetString("notes")
	if err != nil {
		return nil, err
	}

	cfg.Format, err = cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	cfg.Standalone, err = cmd.Flags().GetBool("standalone")
	if err != nil {
		return nil, err
	}

	cfg.OutputPath, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}

	cfg.All, err = cmd.Flags().GetBool("all")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DBDir = dataDir
	}

	cfg.Watch, err = cmd.Flags().GetBool("watch")
	if err != nil {
		return nil, err
	}

	if len(args) == 1 {
		cfg.Profile = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// reportRunner builds and writes reports for one invocation.
type reportRunner struct {
	cfg     *config.Config
	builder *builder.Builder
	history *database.HistoryDB
	logger  *slog.Logger
	out     io.Writer
}

// runReport builds the configured reports, once or on every notes change.
func runReport(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	b, err := builder.New(cfg, builder.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create tracker client: %w", err)
	}

	r := &reportRunner{
		cfg:     cfg,
		builder: b,
		logger:  logger,
		out:     out,
	}

	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		r.history = db
		logger.Debug("history database opened", "path", db.Path())
	}

	if cfg.Watch {
		return r.watch(ctx)
	}
	return r.generate(ctx)
}

// generate builds and writes the report of the selected profile, or of
// every profile with --all.
func (r *reportRunner) generate(ctx context.Context) error {
	if r.cfg.All {
		return r.generateAll(ctx)
	}

	rep, err := r.builder.Build(ctx)
	if err != nil {
		return err
	}
	if err := r.write(rep, r.cfg.OutputPath); err != nil {
		return err
	}
	r.save(ctx, rep)
	return nil
}

// generateAll writes the report of every profile that built. Profiles
// that failed are reported in the returned error.
func (r *reportRunner) generateAll(ctx context.Context) error {
	reports, buildErr := r.builder.BuildAll(ctx)

	for _, rep := range reports {
		path := ""
		if r.cfg.OutputDir != "" {
			path = filepath.Join(r.cfg.OutputDir, rep.Profile+report.Extension(r.cfg.Format))
		}
		if err := r.write(rep, path); err != nil {
			return errors.Join(buildErr, err)
		}
		r.save(ctx, rep)
	}
	return buildErr
}

// write outputs a report to path, or to the command output when path is
// empty.
func (r *reportRunner) write(rep *model.Report, path string) error {
	if path == "" {
		return r.writeTo(r.out, rep)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := r.writeTo(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	r.logger.Info("report written", "profile", rep.Profile, "path", path)
	return nil
}

func (r *reportRunner) writeTo(out io.Writer, rep *model.Report) error {
	w, err := report.New(r.cfg.Format, out, report.Options{
		Standalone: r.cfg.Standalone,
		Title:      report.DefaultTitle + ": " + rep.Profile,
		Pretty:     true,
		Version:    getVersion(),
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// save stores a run in the history database. Failures are logged only:
// the report has already been written.
func (r *reportRunner) save(ctx context.Context, rep *model.Report) {
	if r.history == nil {
		return
	}

	previous, err := r.history.ListRuns(ctx, rep.Profile, 1)
	if err == nil && len(previous) == 1 && previous[0].Digest == rep.Digest() {
		r.logger.Info("report unchanged since last run", "profile", rep.Profile, "previous_run", previous[0].ID)
	}

	run, err := r.history.SaveRun(ctx, rep)
	if err != nil {
		r.logger.Error("failed to save run", "profile", rep.Profile, "error", err)
		return
	}
	r.logger.Debug("run saved", "profile", run.Profile, "run_id", run.ID, "digest", run.Digest)
}

// watch builds the report now and again after every change of the notes
// file, until ctx is done.
func (r *reportRunner) watch(ctx context.Context) error {
	profile, err := r.cfg.ResolveProfile(r.cfg.Profile)
	if err != nil {
		return err
	}

	w, err := watch.New(profile.Notes, watch.WithLogger(r.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	if err := r.generate(ctx); err != nil {
		r.logger.Error("report failed", "profile", r.cfg.Profile, "error", err)
	}

	return w.Run(ctx, r.generate)
}
