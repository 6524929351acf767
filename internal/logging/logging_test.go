package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photorename/internal/config"
)

func TestTraditionalHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTraditionalHandler(&buf, slog.LevelInfo))
	log.Debug("hidden")
	log.With("run", "r1").Warn("collision", "file", "a.jpg")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] collision [run=r1 file=a.jpg]") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSetupWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.FileOutput = true
	cfg.Logging.LogDir = dir

	var stdout bytes.Buffer
	log, err := setup(cfg, &stdout)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	log.Info("DRY RUN: a.jpg ==> b.jpg")

	name := filepath.Join(dir, "photorename-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] DRY RUN: a.jpg ==> b.jpg") {
		t.Fatalf("log file missing line: %q", data)
	}
	if !strings.Contains(stdout.String(), "DRY RUN") {
		t.Fatalf("stdout missing line: %q", stdout.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
