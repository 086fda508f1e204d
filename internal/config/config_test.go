package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolscan.toml")
	contents := `
timeout_seconds = 30

[[target]]
name = "ClineTools"
preset = "cline"

[[target]]
name = "Custom"
archive_url = "https://github.com/o/r/archive/refs/heads/main.zip"
path = "src/tools.ts"

  [[target.rule]]
  kind = "branch-label"
  filter = false

  [[target.rule]]
  kind = "keyed-record"
  block = "TOOL_DISPLAY_NAMES"
  type = "Record<ToolName, string>"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write toolscan.toml: %v", err)
	}

	parsed, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	cfg := parsed.Config
	if cfg.ScratchPrefix != DefaultScratchPrefix {
		t.Fatalf("expected default scratch prefix, got %q", cfg.ScratchPrefix)
	}
	if cfg.TimeoutSeconds != 30 {
		t.Fatalf("expected timeout 30, got %d", cfg.TimeoutSeconds)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Targets))
	}
	custom := cfg.Targets[1]
	if len(custom.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(custom.Rules))
	}
	if custom.Rules[0].FilterEnabled() {
		t.Fatalf("expected filter to be disabled on first rule")
	}
	if !custom.Rules[1].FilterEnabled() {
		t.Fatalf("expected unset filter to default to enabled")
	}
	if parsed.Dir != dir {
		t.Fatalf("expected dir %q, got %q", dir, parsed.Dir)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	contents := `
scratch_prefix: scratch
target:
  - name: Roo
    preset: roo
    format: yaml
`
	if err := os.WriteFile(filepath.Join(dir, "toolscan.yaml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write toolscan.yaml: %v", err)
	}
	file, ok, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected config to be found")
	}
	if file.Config.ScratchPrefix != "scratch" {
		t.Fatalf("expected scratch prefix, got %q", file.Config.ScratchPrefix)
	}
	if len(file.Config.Targets) != 1 || file.Config.Targets[0].Format != "yaml" {
		t.Fatalf("unexpected targets %#v", file.Config.Targets)
	}
}

func TestLoadMissing(t *testing.T) {
	_, ok, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected no config")
	}
}

func TestMergeTargetAndDefaults(t *testing.T) {
	base := Target{
		ArchiveURL: "https://example.com/main.zip",
		Path:       "src/index.ts",
		Rules:      []RuleConfig{{Kind: "declared-array"}},
	}
	merged := ApplyTargetDefaults(MergeTarget(base, Target{Name: "Mine", Path: "src/other.ts"}))
	if merged.ArchiveURL != base.ArchiveURL {
		t.Fatalf("expected archive url from base, got %q", merged.ArchiveURL)
	}
	if merged.Path != "src/other.ts" {
		t.Fatalf("expected override path, got %q", merged.Path)
	}
	if merged.ArchiveName != "downloaded_repo_mine.zip" {
		t.Fatalf("unexpected archive name %q", merged.ArchiveName)
	}
	if merged.Output != "mine_available_tools.json" {
		t.Fatalf("unexpected output %q", merged.Output)
	}
	if len(merged.Rules) != 1 {
		t.Fatalf("expected base rules, got %#v", merged.Rules)
	}
	if err := ValidateTarget(merged); err != nil {
		t.Fatalf("expected merged target to validate: %v", err)
	}
}

func TestValidateTarget(t *testing.T) {
	valid := Target{
		Name:       "Ok",
		ArchiveURL: "https://example.com/main.zip",
		Path:       "src/index.ts",
		Format:     "json",
		Rules:      []RuleConfig{{Kind: "branch-label"}},
	}
	cases := map[string]Target{
		"nested name":   func() Target { t := valid; t.Name = "a/b"; return t }(),
		"no url":        func() Target { t := valid; t.ArchiveURL = ""; return t }(),
		"no rules":      func() Target { t := valid; t.Rules = nil; return t }(),
		"unknown kind":  func() Target { t := valid; t.Rules = []RuleConfig{{Kind: "guess"}}; return t }(),
		"missing block": func() Target { t := valid; t.Rules = []RuleConfig{{Kind: "typed-array", Type: "ToolName[]"}}; return t }(),
		"bad format":    func() Target { t := valid; t.Format = "xml"; return t }(),
	}
	for name, target := range cases {
		if err := ValidateTarget(target); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := ValidateTarget(valid); err != nil {
		t.Fatalf("expected valid target, got %v", err)
	}
	if err := ValidateNames([]Target{{Name: "A"}, {Name: "a"}}); err == nil {
		t.Fatalf("expected duplicate names to fail")
	}
}
