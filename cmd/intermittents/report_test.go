package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/webext-qa/intermittents/internal/config"
	"github.com/webext-qa/intermittents/internal/database"
)

const trackerBody = `{"bugs":[
	{
		"id": 1700001,
		"summary": "Intermittent browser_ext_tabs.js | single tracking bug",
		"status": "NEW",
		"priority": "P2",
		"whiteboard": "[test disabled on windows]",
		"assigned_to": "nobody@mozilla.org",
		"see_also": [],
		"last_change_time": "2024-03-04T05:06:07Z"
	},
	{
		"id": 1700002,
		"summary": "Intermittent browser_ext_menus.js | single tracking bug",
		"status": "ASSIGNED",
		"priority": "P1",
		"whiteboard": "[test disabled]",
		"assigned_to": "dev@example.com",
		"see_also": ["https://bugzilla.mozilla.org/show_bug.cgi?id=1600000"],
		"last_change_time": "2024-03-05T05:06:07Z"
	}
]}`

// newTrackerServer serves a fixed search result, or status when non-zero.
func newTrackerServer(t *testing.T, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackerBody)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

// reportEnv is a temporary config, notes spreadsheet and data directory.
type reportEnv struct {
	dir        string
	configPath string
	dataDir    string
}

func newReportEnv(t *testing.T, trackerURL, profiles string) *reportEnv {
	t.Helper()

	dir := t.TempDir()
	notesPath := filepath.Join(dir, "notes.csv")
	notes := "Bug Number,Test,Disabled on\n1700001,browser_ext_tabs.js,Windows\n"
	if err := os.WriteFile(notesPath, []byte(notes), 0600); err != nil {
		t.Fatal(err)
	}

	content := "tracker:\n  url: " + trackerURL + "\n  timeout: 30s\n" +
		"defaults:\n  notes: " + notesPath + "\n" + profiles
	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	return &reportEnv{
		dir:        dir,
		configPath: configPath,
		dataDir:    filepath.Join(dir, "data"),
	}
}

// run executes the root command with the env config and data directory.
func (e *reportEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--config", e.configPath, "--data-dir", e.dataDir))

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func (e *reportEnv) runs(t *testing.T) []database.Run {
	t.Helper()

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(e.dataDir, opts)
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(t.Context(), "", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	return runs
}

// TestNewReportCmd tests the report command creation.
func TestNewReportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewReportCmd()

	if cmd.Use != "report [profile]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}
	if cmd.Args == nil {
		t.Error("expected Args validator")
	}

	flagsWithShort := map[string]string{
		"notes":   "n",
		"config":  "c",
		"format":  "f",
		"output":  "o",
		"all":     "a",
		"timeout": "t",
		"watch":   "w",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}

	for _, flag := range []string{"standalone", "output-dir", "concurrency", "no-history", "data-dir", "tracker-url", "proxy"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}

	if f := cmd.Flags().Lookup("format"); f != nil && f.DefValue != config.FormatHTML {
		t.Errorf("expected default format %q, got %q", config.FormatHTML, f.DefValue)
	}
}

// TestRunReportCmd tests complete report runs against a local tracker.
func TestRunReportCmd(t *testing.T) {
	t.Parallel()

	t.Run("writes html file and stores a run", func(t *testing.T) {
		t.Parallel()

		srv := newTrackerServer(t, 0)
		env := newReportEnv(t, srv.URL, "")
		outputPath := filepath.Join(env.dir, "public", "index.html")

		if _, stderr, err := env.run(t, "report", "-o", outputPath, "--standalone"); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		html := string(content)
		for _, want := range []string{
			"<!DOCTYPE html>",
			"Last generated: ",
			`<table class="intermittents">`,
			"browser_ext_tabs.js",
			// link icon to the bug
			"/1700002\"",
			// see_also outside the configured tracker keeps its full URL
			">https://bugzilla.mozilla.org/show_bug.cgi?id=1600000</a>",
		} {
			if !strings.Contains(html, want) {
				t.Errorf("expected report to contain %q", want)
			}
		}
		if strings.Index(html, "1700002") > strings.Index(html, "1700001") {
			t.Error("expected the P1 bug before the P2 bug")
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}

		runs := env.runs(t)
		if len(runs) != 1 {
			t.Fatalf("expected 1 stored run, got %d", len(runs))
		}
		if runs[0].Profile != config.DefaultProfile || runs[0].RowCount != 2 || runs[0].NotesLoaded != 1 {
			t.Errorf("unexpected run: %+v", runs[0])
		}
	})

	t.Run("markdown to stdout without history", func(t *testing.T) {
		t.Parallel()

		srv := newTrackerServer(t, 0)
		env := newReportEnv(t, srv.URL, "")

		stdout, stderr, err := env.run(t, "report", "-f", "markdown", "--no-history")
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if !strings.Contains(stdout, "# Disabled intermittent tests: default") {
			t.Errorf("expected markdown title, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "browser_ext_tabs.js") {
			t.Error("expected noted test name in output")
		}
		if _, err := os.Stat(env.dataDir); !os.IsNotExist(err) {
			t.Error("expected no history database")
		}
	})

	t.Run("json logs", func(t *testing.T) {
		t.Parallel()

		srv := newTrackerServer(t, 0)
		env := newReportEnv(t, srv.URL, "")

		_, stderr, err := env.run(t, "report", "-f", "text", "--no-history", "-v", "--log-json")
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if !strings.HasPrefix(stderr, "{") || !strings.Contains(stderr, `"msg":"report built"`) {
			t.Errorf("expected json log lines, got:\n%s", stderr)
		}
		if _, err := os.Stat(env.dataDir); !os.IsNotExist(err) {
			t.Error("expected no history database")
		}
	})

	t.Run("tracker failure writes nothing", func(t *testing.T) {
		t.Parallel()

		srv := newTrackerServer(t, http.StatusInternalServerError)
		env := newReportEnv(t, srv.URL, "")
		outputPath := filepath.Join(env.dir, "index.html")

		_, _, err := env.run(t, "report", "-o", outputPath)
		if err == nil {
			t.Fatal("expected error")
		}
		if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
			t.Error("expected no report file")
		}
		if runs := env.runs(t); len(runs) != 0 {
			t.Errorf("expected no stored run, got %d", len(runs))
		}
	})

	t.Run("all profiles into output dir", func(t *testing.T) {
		t.Parallel()

		srv := newTrackerServer(t, 0)
		env := newReportEnv(t, srv.URL, "profiles:\n  android:\n    components: [\"WebExtensions: Android\"]\n  desktop: {}\n")
		outDir := filepath.Join(env.dir, "reports")

		if _, stderr, err := env.run(t, "report", "--all", "--output-dir", outDir, "-f", "json"); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}

		for _, name := range []string{"android.json", "desktop.json"} {
			content, err := os.ReadFile(filepath.Join(outDir, name))
			if err != nil {
				t.Errorf("expected %s: %v", name, err)
				continue
			}
			if !strings.Contains(string(content), `"version"`) {
				t.Errorf("expected %s to carry the version", name)
			}
		}
		if runs := env.runs(t); len(runs) != 2 {
			t.Errorf("expected 2 stored runs, got %d", len(runs))
		}
	})

	t.Run("configuration errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"standalone markdown", []string{"report", "--standalone", "-f", "markdown"}, config.ErrConflictingFormats},
			{"unknown format", []string{"report", "-f", "pdf"}, config.ErrUnknownFormat},
			{"unknown profile", []string{"report", "nope"}, config.ErrUnknownProfile},
			{"watch all", []string{"report", "--all", "--watch"}, config.ErrConflictingWatch},
			{"notes all", []string{"report", "--all", "-n", "shared.csv", "--output-dir", "out"}, config.ErrConflictingNotes},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				env := newReportEnv(t, "https://bugzilla.example.com", "")
				_, _, err := env.run(t, tt.args...)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"report", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

		err := cmd.ExecuteContext(t.Context())
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestBuildConfig tests the precedence of flags over the config file.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	env := newReportEnv(t, "https://bugzilla.example.com", "")

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "file values",
			args: []string{"--config", env.configPath},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.TrackerURL != "https://bugzilla.example.com" {
					t.Errorf("TrackerURL = %q", cfg.TrackerURL)
				}
				if cfg.Timeout != 30*time.Second {
					t.Errorf("Timeout = %v", cfg.Timeout)
				}
				if !cfg.SaveHistory {
					t.Error("expected SaveHistory")
				}
			},
		},
		{
			name: "flags override file",
			args: []string{"--config", env.configPath, "-t", "10s", "--tracker-url", "http://localhost:8080", "--no-history"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.TrackerURL != "http://localhost:8080" {
					t.Errorf("TrackerURL = %q", cfg.TrackerURL)
				}
				if cfg.Timeout != 10*time.Second {
					t.Errorf("Timeout = %v", cfg.Timeout)
				}
				if cfg.SaveHistory {
					t.Error("expected SaveHistory to be false")
				}
			},
		},
		{
			name: "data dir and output flags",
			args: []string{"--config", env.configPath, "--data-dir", env.dataDir, "-n", "other.csv", "-a", "--concurrency", "2"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.DBDir != env.dataDir {
					t.Errorf("DBDir = %q", cfg.DBDir)
				}
				if cfg.NotesPath != "other.csv" || !cfg.All || cfg.Concurrency != 2 {
					t.Errorf("unexpected config: %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewReportCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			cfg, err := buildConfig(cmd, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}

	t.Run("profile argument", func(t *testing.T) {
		t.Parallel()

		cmd := NewReportCmd()
		if err := cmd.ParseFlags([]string{"--config", env.configPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"android"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Profile != "android" {
			t.Errorf("Profile = %q, want android", cfg.Profile)
		}
	})
}

// TestBuildConfig_EnvAPIKey tests that the environment overrides the file key.
func TestBuildConfig_EnvAPIKey(t *testing.T) {
	env := newReportEnv(t, "https://bugzilla.example.com", "")
	t.Setenv(config.EnvAPIKey, "env-key")

	cmd := NewReportCmd()
	if err := cmd.ParseFlags([]string{"--config", env.configPath}); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.APIKey)
	}
}
