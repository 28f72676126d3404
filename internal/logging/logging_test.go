package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"event-settlement/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		output = os.Stdout
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	log.Debug().Str("event_id", "ev_1").Msg("settle start")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"event_id":"ev_1"`) {
		t.Fatalf("expected event_id in log file, got %q", string(raw))
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("global level = %v, want debug", zerolog.GlobalLevel())
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	if err := Init(config.LogConfig{Level: "chatty"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info", zerolog.GlobalLevel())
	}
	if Writer() != os.Stdout {
		t.Fatal("expected stdout writer without LOG_FILE")
	}
}
