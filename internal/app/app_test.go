package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:       "sqlite3",
			DatabasePath: filepath.Join(dir, "db", "ecosort.db"),
			KeepImages:   true,
			ImageDir:     filepath.Join(dir, "images"),
		},
		LLM: config.LLMConfig{
			Provider: "openai",
			OpenAI:   config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o"},
			Language: "vi",
		},
		Camera:  config.CameraConfig{JPEGQuality: 90},
		Capture: config.CaptureConfig{SessionIdleMinutes: 15},
		UI:      config.UIConfig{Language: "en"},
	}
}

func TestNew_WiresPipeline(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("building app: %v", err)
	}
	defer a.Close()

	if got := a.Service.ProviderName(); got != "openai" {
		t.Errorf("expected openai provider, got %s", got)
	}
	if got := a.Service.ModelName(); got != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %s", got)
	}

	stats, err := a.Service.Stats(context.Background())
	if err != nil {
		t.Fatalf("ledger should be open: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("expected empty ledger, got %d rows", stats.Total)
	}
}

func TestNew_RejectsMissingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAI.APIKey = ""

	_, err := New(context.Background(), cfg, zap.NewNop())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewStore_UsesUILanguage(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("building app: %v", err)
	}
	defer a.Close()

	store := a.NewStore(nil)
	defer store.Close()

	s := store.Create()
	if s.Language() != "en" {
		t.Errorf("expected en sessions, got %s", s.Language())
	}
	if s.Snapshot().State != session.StateIdle {
		t.Errorf("expected a fresh session to be idle, got %s", s.Snapshot().State)
	}
}

func TestRunMaintenance_StopsWithContext(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("building app: %v", err)
	}
	defer a.Close()
	store := a.NewStore(nil)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunMaintenance(ctx, store)
		close(done)
	}()
	cancel()
	<-done
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("warn", false); err != nil {
		t.Errorf("warn level: %v", err)
	}
	if _, err := NewLogger("info", true); err != nil {
		t.Errorf("development logger: %v", err)
	}
	if _, err := NewLogger("loud", false); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
