package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func restoreLogger(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupLevel(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	if _, err := Setup(Config{Level: "WARN"}, &buf); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("session_id", "s1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, `"session_id":"s1"`) || !strings.Contains(out, "shown") {
		t.Fatalf("expected the warn line as JSON, got %q", out)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	restoreLogger(t)
	if _, err := Setup(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestSetupWritesFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "voyager.log")

	closer, err := Setup(Config{Level: "debug", File: path, Pretty: true}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Debug().Str("player_id", "p1").Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"player_id":"p1"`) {
		t.Fatalf("expected JSON line in file, got %q", data)
	}
}
