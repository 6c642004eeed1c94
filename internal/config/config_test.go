package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/prrisk/internal/review"
)

// isolate keeps the test away from a .prrisk.yml in the working directory
// and from the caller's environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, e := range envKeys {
		t.Setenv(e.env, "")
	}
	t.Setenv("PRRISK_CONFIG", "")
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prrisk.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Analysis.MaxFiles != 50 || cfg.Analysis.MaxDiffLines != 1000 {
		t.Errorf("analysis limits = %d/%d, want 50/1000", cfg.Analysis.MaxFiles, cfg.Analysis.MaxDiffLines)
	}
	if cfg.Run.Budget != 300*time.Second {
		t.Errorf("budget = %v, want 5m", cfg.Run.Budget)
	}
	if cfg.AI.MaxTokens != 4096 || cfg.AI.Temperature != 0.3 {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redact_secrets should be true")
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverDefaults(t *testing.T) {
	isolate(t)
	path := writeFile(t, `
analysis:
  max_files: 20
  enable_performance: false
comment:
  include_key_files: false
ai:
  provider: openai
  model: gpt-4o
  timeout: 45s
  cache:
    enabled: true
    ttl: 1h
run:
  budget: 2m
  fail_on: high
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Analysis.MaxFiles = 20
	want.Analysis.EnablePerformance = false
	want.Comment.IncludeKeyFiles = false
	want.AI.Provider = "openai"
	want.AI.Model = "gpt-4o"
	want.AI.Timeout = 45 * time.Second
	want.AI.Cache.Enabled = true
	want.AI.Cache.TTL = time.Hour
	want.Run.Budget = 2 * time.Minute
	want.Run.FailOn = "high"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	path := writeFile(t, "analysis:\n  max_files: 20\nai:\n  model: file-model\n")
	t.Setenv("PRRISK_MAX_FILES", "30")
	t.Setenv("PRRISK_AI_MODEL", "env-model")
	t.Setenv("PRRISK_ENABLE_SECURITY", "false")
	t.Setenv("PRRISK_AI_CACHE", "true")

	cfg, err := Load(path, map[string]string{"ai.model": "flag-model"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.MaxFiles != 30 {
		t.Errorf("max_files = %d, want env value 30", cfg.Analysis.MaxFiles)
	}
	if cfg.AI.Model != "flag-model" {
		t.Errorf("model = %q, want flag value", cfg.AI.Model)
	}
	if cfg.Analysis.EnabledCategories()[review.CategorySecurity] {
		t.Error("security should be disabled by env")
	}
	if !cfg.AI.Cache.Enabled {
		t.Error("cache should be enabled by env")
	}
}

func TestLoad_ConfigEnvPath(t *testing.T) {
	isolate(t)
	t.Setenv("PRRISK_CONFIG", writeFile(t, "run:\n  fail_on: medium\n"))
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.FailOn != "medium" {
		t.Errorf("fail_on = %q", cfg.Run.FailOn)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantKey string
	}{
		{"bad env int", "", map[string]string{"PRRISK_MAX_FILES": "lots"}, "PRRISK_MAX_FILES"},
		{"bad env bool", "", map[string]string{"PRRISK_ENABLE_SECURITY": "maybe"}, "PRRISK_ENABLE_SECURITY"},
		{"bad env duration", "", map[string]string{"PRRISK_RUN_BUDGET": "soon"}, "PRRISK_RUN_BUDGET"},
		{"max files out of range", "analysis:\n  max_files: 0\n", nil, "analysis.max_files"},
		{"diff lines out of range", "analysis:\n  max_diff_lines: 5\n", nil, "analysis.max_diff_lines"},
		{"temperature out of range", "ai:\n  temperature: 1.5\n", nil, "ai.temperature"},
		{"unknown provider", "ai:\n  provider: gemini\n", nil, "ai.provider"},
		{"bad fail_on", "run:\n  fail_on: critical\n", nil, "run.fail_on"},
		{"invalid yaml", "analysis: [unclosed\n", nil, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := Load(path, nil)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want *config.Error", err)
			}
			if cerr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q (%v)", cerr.Key, tt.wantKey, err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil)
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Key != "file" {
		t.Fatalf("err = %v, want file error", err)
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nope", "1"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v", err)
	}
	if err := SetField(&cfg, "run.budget", "120"); err != nil || cfg.Run.Budget != 2*time.Minute {
		t.Errorf("plain seconds: budget = %v, err = %v", cfg.Run.Budget, err)
	}
}

func TestSetField_CommentLimits(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "comment.max_findings_per_category", "10"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := SetField(&cfg, "comment.max_body_bytes", "30000"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if cfg.Comment.MaxFindingsPerCategory != 10 || cfg.Comment.MaxBodyBytes != 30000 {
		t.Errorf("comment = %+v", cfg.Comment)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.Comment.MaxBodyBytes = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("body limit over the platform maximum should not validate")
	}
}

func TestInitAndRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", ".prrisk.yml")
	if err := Init(path, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(path, false); err == nil {
		t.Error("second Init without force should fail")
	}
	if err := Init(path, true); err != nil {
		t.Errorf("Init with force: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_REPOSITORY", "o/r")
	t.Setenv("GITHUB_EVENT_NUMBER", "17")
	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if s != (Secrets{GitHubToken: "tok", Repository: "o/r", PRNumber: 17}) {
		t.Errorf("secrets = %+v", s)
	}

	t.Setenv("GITHUB_EVENT_NUMBER", "abc")
	if _, err := LoadSecrets(); err == nil {
		t.Error("expected error for non-numeric PR number")
	}
}

func TestMarshal_NoSecrets(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(strings.ToLower(out), "token:") || strings.Contains(out, "api_key") {
		t.Errorf("marshaled config leaks credential fields:\n%s", out)
	}
	if !strings.Contains(out, "budget: 5m0s") {
		t.Errorf("durations should marshal as strings:\n%s", out)
	}
}
