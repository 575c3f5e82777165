package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loopgate.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Storage.Conversations.Driver != "memory" || cfg.Storage.Approvals.Driver != "memory" {
		t.Fatalf("unexpected storage drivers: %+v", cfg.Storage)
	}
	if cfg.LLM.Provider != "scripted" {
		t.Fatalf("unexpected llm provider: %s", cfg.LLM.Provider)
	}
	if cfg.Events.Driver != "none" {
		t.Fatalf("unexpected events driver: %s", cfg.Events.Driver)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{"gate":{"policy_path":"gatepolicy.yaml","knowledge_path":"knowledge.json"}}`)
	baseDir := filepath.Dir(path)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gate.PolicyPath != filepath.Join(baseDir, "gatepolicy.yaml") {
		t.Fatalf("unexpected policy path: %s", cfg.Gate.PolicyPath)
	}
	if cfg.Gate.KnowledgePath != filepath.Join(baseDir, "knowledge.json") {
		t.Fatalf("unexpected knowledge path: %s", cfg.Gate.KnowledgePath)
	}
	if cfg.Runtime.DataDir != filepath.Join(baseDir, "data") {
		t.Fatalf("unexpected data dir: %s", cfg.Runtime.DataDir)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
        "server": {"address": ":9090"},
        "storage": {"approvals": {"driver": "redis", "redis": {"address": "127.0.0.1:6379", "ttl_seconds": 60}}},
        "llm": {"provider": "openai", "timeout_seconds": 20}
    }`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Storage.Approvals.Driver != "redis" || cfg.Storage.Approvals.Redis.TTLSeconds != 60 {
		t.Fatalf("unexpected approvals config: %+v", cfg.Storage.Approvals)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.TimeoutSeconds != 20 {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
