package astrolog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFormatLogEntry(t *testing.T) {
	raw := []byte(`{"level":"warn","time":"2026-10-18 11:30:12.045","caller":"orchestrator:160","message":"Delivery failed, envelope retained","timestamp_ms":1000,"pending":2}`)

	line, err := formatLogEntry(zerolog.WarnLevel, raw)
	if err != nil {
		t.Fatalf("formatLogEntry failed: %v", err)
	}
	for _, want := range []string{
		"2026-10-18 11:30:12.045 | warn ",
		"orchestrator:160",
		"Delivery failed, envelope retained",
		"| pending=2 timestamp_ms=1000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("expected trailing newline in %q", line)
	}
}

func TestFormatLogEntry_NoExtras(t *testing.T) {
	raw := []byte(`{"level":"info","time":"2026-10-18 11:30:12.045","message":"ready"}`)
	line, err := formatLogEntry(zerolog.InfoLevel, raw)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasSuffix(strings.TrimSpace(line), "|") {
		t.Fatalf("unexpected trailing separator in %q", line)
	}
}

func TestFormatLogEntry_InvalidJSON(t *testing.T) {
	if _, err := formatLogEntry(zerolog.InfoLevel, []byte("not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestStripCallerPath(t *testing.T) {
	cases := map[string]string{
		"":                                "",
		"pkg/astrocarver/orchestrator.go": "orchestrator",
		"main.go":                         "main",
	}
	for in, want := range cases {
		if got := stripCallerPath(in); got != want {
			t.Errorf("stripCallerPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteRunSeparator(t *testing.T) {
	var buf bytes.Buffer
	writeRunSeparator(&buf, "astrocarver", time.Date(2026, 10, 18, 8, 0, 0, 0, time.Local))

	out := buf.String()
	if !strings.Contains(out, "ASTROCARVER STARTED") {
		t.Fatalf("missing title in banner:\n%s", out)
	}
	if !strings.Contains(out, "Started : 2026-10-18 08:00:00") {
		t.Fatalf("missing start time in banner:\n%s", out)
	}
}

func TestDeleteOldLogFiles(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.log", "b.log", "c.log", "keep.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		mod := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	if err := deleteOldLogFiles(dir, 2); err != nil {
		t.Fatalf("deleteOldLogFiles failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.log")); !os.IsNotExist(err) {
		t.Fatal("expected oldest log to be removed")
	}
	for _, name := range []string{"b.log", "c.log", "keep.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestUpdateLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	UpdateLogLevel("DEBUG")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", zerolog.GlobalLevel())
	}
	UpdateLogLevel("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", zerolog.GlobalLevel())
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	dir := t.TempDir()

	closer := InitLogger(Config{
		AppName:     "astrocarver",
		LogLevel:    "info",
		LogToFile:   true,
		LogDir:      dir,
		LogFileName: "test",
		Formatted:   true,
		MaxFileSize: 1,
		MaxLogFiles: 3,
	})
	logger := GetLogger()
	logger.Info().Str("camera", "cam1").Msg("hello file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "test_*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") || !strings.Contains(string(data), "camera=cam1") {
		t.Fatalf("unexpected log file contents:\n%s", data)
	}
}
