package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup_TextDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, cleanup := Setup(Options{Output: &buf})
	defer cleanup()

	logger.Debug("hidden")
	logger.Info(`Processing block "B1"`, "block", "B1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line logged at info level: %q", out)
	}
	if !strings.Contains(out, "block=B1") {
		t.Fatalf("text output missing attribute: %q", out)
	}
}

func TestSetup_JSONVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, cleanup := Setup(Options{Format: "json", Verbose: true, Output: &buf})
	defer cleanup()

	logger.Debug("dbg", "run_id", "r-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "dbg" || rec["run_id"] != "r-1" || rec["level"] != "DEBUG" {
		t.Fatalf("record = %v", rec)
	}
}

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	t.Parallel()

	var info, debug bytes.Buffer
	m := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}
	if !m.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Enabled(debug) = false, want true when any handler accepts it")
	}

	logger := slog.New(m).With("job", "j1").WithGroup("g")
	logger.Debug("only-debug", "k", "v")
	logger.Info("both")

	if strings.Contains(info.String(), "only-debug") {
		t.Fatalf("info handler received debug record: %q", info.String())
	}
	if !strings.Contains(debug.String(), "only-debug") || !strings.Contains(debug.String(), "g.k=v") {
		t.Fatalf("debug handler output = %q", debug.String())
	}
	for _, out := range []string{info.String(), debug.String()} {
		if !strings.Contains(out, "both") || !strings.Contains(out, "job=j1") {
			t.Fatalf("handler output missing shared record: %q", out)
		}
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("Discard logger should not be enabled at error level")
	}
}
