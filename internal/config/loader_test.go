package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `
models_root = "/srv/models"

[model]
model_path = "models/rwkv-7b.gguf"
precision = "fp16"
quant = 8

[[model.lora]]
path = "loras/chat.gguf"
alpha = 0.7

[[model.state]]
path = "states/assistant.state"
name = "assistant"
default = true

[model.listen]
ip = "127.0.0.1"
port = 8080
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsRoot != "/srv/models" {
		t.Fatalf("models_root = %q", cfg.ModelsRoot)
	}
	if cfg.Model.ModelPath != "models/rwkv-7b.gguf" || cfg.Model.Precision != "fp16" || cfg.Model.Quant != 8 {
		t.Fatalf("unexpected model section: %+v", cfg.Model)
	}
	if len(cfg.Model.Lora) != 1 || cfg.Model.Lora[0].Alpha != 0.7 {
		t.Fatalf("unexpected lora: %+v", cfg.Model.Lora)
	}
	if len(cfg.Model.State) != 1 || !cfg.Model.State[0].Default {
		t.Fatalf("unexpected state: %+v", cfg.Model.State)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "models_root: /m\nmodel:\n  model_path: models/a.gguf\n  max_batch: 4\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsRoot != "/m" || cfg.Model.ModelPath != "models/a.gguf" || cfg.Model.MaxBatch != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"models_root":"/j","model":{"model_path":"models/b.gguf","token_chunk_size":256}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsRoot != "/j" || cfg.Model.ModelPath != "models/b.gguf" || cfg.Model.TokenChunkSize != 256 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.toml")); err == nil {
		t.Fatalf("expected error on missing file")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	if cfg.ModelsRoot != "assets" {
		t.Fatalf("models_root = %q", cfg.ModelsRoot)
	}
	if cfg.Addr() != "0.0.0.0:65530" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Model.TokenChunkSize != 128 || cfg.Model.MaxBatch != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg.Model)
	}
}
