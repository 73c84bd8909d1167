package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/webext-qa/intermittents/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockStep is a configurable Step for tests.
type mockStep struct {
	name   string
	doFunc func(ctx context.Context, report *model.Report) error
}

func (m *mockStep) Do(ctx context.Context, report *model.Report) error {
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestPipelineNew tests the constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	p := New()
	if p.StepCount() != 0 {
		t.Errorf("expected 0 steps, got %d", p.StepCount())
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

// TestPipelineAddStep tests step registration order.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "a"})
	p.AddSteps(&mockStep{name: "b"}, &mockStep{name: "c"})

	if diff := cmp.Diff([]string{"a", "b", "c"}, p.StepNames()); diff != "" {
		t.Errorf("step names mismatch (-want +got):\n%s", diff)
	}
}

// TestPipelineExecute tests sequential execution and fail-fast behavior.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) Step {
			return &mockStep{name: name, doFunc: func(_ context.Context, _ *model.Report) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(step("one"), step("two"), step("three"))

		report := model.NewReport("default")
		if err := p.Execute(t.Context(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"one", "two", "three"}
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, report.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		ran := false

		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{name: "ok"},
			&mockStep{name: "fail", doFunc: func(_ context.Context, _ *model.Report) error { return errBoom }},
			&mockStep{name: "after", doFunc: func(_ context.Context, _ *model.Report) error {
				ran = true
				return nil
			}},
		)

		report := model.NewReport("default")
		err := p.Execute(t.Context(), report)

		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if ran {
			t.Error("step after the failure must not run")
		}
		if !errors.Is(report.Error, errBoom) || report.ErrorMessage != "boom" {
			t.Errorf("expected error recorded in report, got %v / %q", report.Error, report.ErrorMessage)
		}
		if diff := cmp.Diff([]string{"ok"}, report.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("checks cancellation before each step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{name: "cancel", doFunc: func(_ context.Context, _ *model.Report) error {
				cancel()
				return nil
			}},
			&mockStep{name: "never"},
		)

		report := model.NewReport("default")
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if diff := cmp.Diff([]string{"cancel"}, report.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty pipeline succeeds", func(t *testing.T) {
		t.Parallel()

		if err := New().Execute(t.Context(), model.NewReport("default")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestPipelineWithLogger tests that step progress is logged.
func TestPipelineWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := New(WithLogger(logger))
	p.AddStep(&mockStep{name: "logged"})

	if err := p.Execute(t.Context(), model.NewReport("webext")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"executing step", "step=logged", "profile=webext", "step completed"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("expected %q in log output: %s", want, out)
		}
	}
}
