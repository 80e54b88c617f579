package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp(DefaultConfig(), logger, nil, &out)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app, &out
}

func TestAppRunCycles(t *testing.T) {
	app, out := newTestApp(t)

	if err := app.Run(context.Background(), time.Millisecond, 2); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if app.Info().Cycles != 2 {
		t.Errorf("cycles = %d, want 2", app.Info().Cycles)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"[control] evse/limit=11000 evse/power=7400",
		"[panel] evse/energy=12500 evse/state=charging",
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got:\n%s", out.String())
	}
	for i, line := range lines {
		if line != want[i%2] {
			t.Errorf("line %d = %q, want %q", i, line, want[i%2])
		}
	}
}

func TestAppFailureAndRecovery(t *testing.T) {
	app, out := newTestApp(t)
	ctx := context.Background()

	app.SetFailing(true)
	if err := app.Download(ctx); err != nil {
		t.Fatalf("Download with failure callbacks returned %v", err)
	}
	if err := app.Download(ctx); err != nil {
		t.Fatalf("second Download returned %v", err)
	}
	failed := out.String()
	if strings.Count(failed, "[control] download failed") != 2 {
		t.Errorf("expected a failure report per cycle for control:\n%s", failed)
	}
	if strings.Count(failed, "[panel] download failed") != 2 {
		t.Errorf("expected a failure report per cycle for panel:\n%s", failed)
	}

	out.Reset()
	app.SetFailing(false)
	if err := app.SetValue("evse/power", "3700"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := app.Download(ctx); err != nil {
		t.Fatalf("Download returned %v", err)
	}
	recovered := out.String()
	for _, want := range []string{"[control] recovered", "[panel] recovered", "evse/power=3700"} {
		if !strings.Contains(recovered, want) {
			t.Errorf("expected %q in output:\n%s", want, recovered)
		}
	}
}

func TestAppGroups(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.Info().Registered; got != 3 {
		t.Fatalf("registered = %d, want 3", got)
	}

	if err := app.AddNode("extra", "evse/state"); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if err := app.AddNode("extra", "nope"); err == nil {
		t.Error("expected error for unknown node")
	}
	if err := app.RemoveNode("missing", "evse/state"); err == nil {
		t.Error("expected error for unknown group")
	}
	if got := strings.Join(app.Groups(), ","); got != "control,extra,panel" {
		t.Errorf("groups = %s", got)
	}

	gone, err := app.Disconnect("control")
	if err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if strings.Join(gone, ",") != "control,panel" {
		t.Errorf("disconnected = %v", gone)
	}
	if got := app.Info().Registered; got != 2 {
		t.Errorf("registered = %d, want 2", got)
	}
	if _, err := app.Disconnect("panel"); err == nil {
		t.Error("expected error for forgotten group")
	}
}

func TestAppViewAndClean(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	if err := app.Download(ctx); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got := len(app.View("evse/")); got != 4 {
		t.Errorf("view size = %d, want 4", got)
	}
	if got := app.View("evse/state")["evse/state"]; got != "charging" {
		t.Errorf("evse/state = %v", got)
	}

	if err := app.RemoveNode("panel", "evse/energy"); err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}
	if removed := app.CleanData(); removed != 1 {
		t.Errorf("CleanData removed %d, want 1", removed)
	}
}

func TestAppDoRunsBetweenCycles(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, time.Hour, 0) }()

	var groups []string
	if err := app.Do(ctx, func() { groups = app.Groups() }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("groups = %v", groups)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"1.5", 1.5},
		{"true", true},
		{"idle", "idle"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}
