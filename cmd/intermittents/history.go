package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/webext-qa/intermittents/internal/config"
	"github.com/webext-qa/intermittents/internal/database"
	"github.com/webext-qa/intermittents/internal/model"
	"github.com/webext-qa/intermittents/internal/report"
)

// errNotEnoughRuns is returned by --diff when a profile has fewer than two runs.
var errNotEnoughRuns = errors.New("at least two runs are needed to compare")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [profile]",
		Short: "Inspect stored report runs",
		Long: `History lists the runs stored by "intermittents report" and compares them.

Without a profile, runs of every profile are listed. --diff, --bug and
--prune work on one profile and default to the "default" profile.

Examples:
  # List the latest runs
  intermittents history

  # Show what changed between the last two runs
  intermittents history --diff

  # Compare an older run with the latest one
  intermittents history --diff --with-run 6f1c...

  # Print a stored report again as markdown
  intermittents history --show 6f1c... -f markdown

  # List the runs that contained a bug
  intermittents history --bug 1812345

  # Keep only the 10 newest runs of the android profile
  intermittents history android --prune 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("data-dir", "",
		"Directory of the history database (default: XDG data directory)")
	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of runs listed (0 lists all)")
	cmd.Flags().BoolP("diff", "d", false,
		"Compare the two latest runs of the profile")
	cmd.Flags().String("with-run", "",
		"With --diff, compare this run with the latest run of its profile")
	cmd.Flags().String("show", "",
		"Write the stored report of a run")
	cmd.Flags().Int("bug", 0,
		"List the runs whose report contained this bug")
	cmd.Flags().Int("prune", -1,
		"Delete all but the newest N runs of the profile")
	cmd.Flags().StringP("format", "f", config.FormatText,
		"Format of --show and --diff: html, markdown, json or text")

	cmd.MarkFlagsMutuallyExclusive("diff", "show", "bug", "prune")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	dataDir string
	profile string
	limit   int
	diff    bool
	withRun string
	show    string
	bug     int
	prune   int
	format  string
}

func parseHistoryFlags(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{dataDir: config.XDGDataDir()}

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		opts.dataDir = dataDir
	}

	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.diff, err = cmd.Flags().GetBool("diff"); err != nil {
		return nil, err
	}
	if opts.withRun, err = cmd.Flags().GetString("with-run"); err != nil {
		return nil, err
	}
	if opts.show, err = cmd.Flags().GetString("show"); err != nil {
		return nil, err
	}
	if opts.bug, err = cmd.Flags().GetInt("bug"); err != nil {
		return nil, err
	}
	if opts.prune, err = cmd.Flags().GetInt("prune"); err != nil {
		return nil, err
	}
	if opts.format, err = cmd.Flags().GetString("format"); err != nil {
		return nil, err
	}

	if opts.withRun != "" && !opts.diff {
		return nil, errors.New("--with-run requires --diff")
	}

	if len(args) == 1 {
		opts.profile = args[0]
	}
	return opts, nil
}

// profileOrDefault returns the selected profile, or the default one.
func (o *historyOptions) profileOrDefault() string {
	if o.profile == "" {
		return config.DefaultProfile
	}
	return o.profile
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	opt := database.DefaultOptions()
	opt.CreateIfNotExists = false
	db, err := database.Open(opts.dataDir, opt)
	if err != nil {
		return fmt.Errorf("no history found in %s: %w", opts.dataDir, err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.show != "":
		return showRun(ctx, db, out, opts)
	case opts.diff:
		return diffRuns(ctx, db, out, opts)
	case opts.prune >= 0:
		profile := opts.profileOrDefault()
		n, err := db.Prune(ctx, profile, opts.prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d runs of %s\n", n, profile)
		return nil
	case opts.bug > 0:
		runs, err := db.BugRuns(ctx, opts.profileOrDefault(), opts.bug)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintf(out, "Bug %d is in no stored run of %s\n", opts.bug, opts.profileOrDefault())
			return nil
		}
		return printRuns(out, runs)
	default:
		runs, err := db.ListRuns(ctx, opts.profile, opts.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs stored")
			return nil
		}
		return printRuns(out, runs)
	}
}

// showRun writes the stored report of one run.
func showRun(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	rep, err := db.GetReport(ctx, opts.show)
	if err != nil {
		return err
	}

	w, err := report.New(opts.format, out, report.Options{Pretty: true})
	if err != nil {
		return err
	}
	_, err = w.Write(rep)
	return err
}

// diffRuns writes the comparison of two runs.
func diffRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	c, err := compareRuns(ctx, db, opts)
	if err != nil {
		return err
	}

	w, err := report.New(opts.format, out, report.Options{Pretty: true})
	if err != nil {
		return err
	}
	_, err = w.WriteDiff(c)
	return err
}

// compareRuns compares the latest run of a profile with the run before
// it, or with the run named by --with-run.
func compareRuns(ctx context.Context, db *database.HistoryDB, opts *historyOptions) (*report.Comparison, error) {
	var previous, current *database.Run

	if opts.withRun != "" {
		run, err := db.GetRun(ctx, opts.withRun)
		if err != nil {
			return nil, err
		}
		latest, err := db.ListRuns(ctx, run.Profile, 1)
		if err != nil {
			return nil, err
		}
		previous, current = run, &latest[0]
	} else {
		profile := opts.profileOrDefault()
		runs, err := db.ListRuns(ctx, profile, 2)
		if err != nil {
			return nil, err
		}
		if len(runs) < 2 {
			return nil, fmt.Errorf("%w: %s has %d", errNotEnoughRuns, profile, len(runs))
		}
		previous, current = &runs[1], &runs[0]
	}

	prevRows, err := db.GetRunRows(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	curRows, err := db.GetRunRows(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	return &report.Comparison{
		Profile:       current.Profile,
		PreviousRunID: previous.ID,
		PreviousAt:    previous.GeneratedAt,
		CurrentRunID:  current.ID,
		CurrentAt:     current.GeneratedAt,
		Diff:          model.CompareRows(prevRows, curRows),
	}, nil
}

// printRuns lists runs as an aligned table.
func printRuns(out io.Writer, runs []database.Run) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tPROFILE\tGENERATED\tROWS\tBUGS\tNOTES\tDIGEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Profile, r.GeneratedAt.Format(model.CaptionLayout),
			r.RowCount, r.BugsFetched, r.NotesLoaded, shortDigest(r.Digest))
	}
	return tw.Flush()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
