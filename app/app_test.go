package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/harvest"
)

func TestDefaultsAgree(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	if got, want := HarvestOptions(cfg.Harvest), harvest.DefaultOptions(); got != want {
		t.Errorf("harvest options = %+v, want %+v", got, want)
	}
	if got, want := Selectors(cfg.Selectors), extract.DefaultSelectors(); got != want {
		t.Errorf("selectors = %+v, want %+v", got, want)
	}
	if _, err := extract.NewParser(Selectors(cfg.Selectors)); err != nil {
		t.Errorf("default selectors do not compile: %v", err)
	}
}

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	InitLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	slog.Info("dropped")
	slog.Warn("kept", "location", "Domlur")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"location":"Domlur"`) {
		t.Errorf("expected a JSON warn line, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"LOUD":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
