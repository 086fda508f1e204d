package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tuist/toolscan/internal/harvest"
)

var Formats = []string{"json", "yaml", "yml"}

// ValidateTarget checks a target after preset merge and defaults.
func ValidateTarget(t Target) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("target requires name")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("target name %q must be a single path segment", t.Name)
	}
	if strings.TrimSpace(t.ArchiveURL) == "" {
		return fmt.Errorf("target %q has no archive_url", name)
	}
	if strings.TrimSpace(t.Path) == "" {
		return fmt.Errorf("target %q has no path", name)
	}
	if strings.ContainsAny(t.ArchiveName, `/\`) {
		return fmt.Errorf("target %q archive_name %q must be a file name", name, t.ArchiveName)
	}
	if !knownFormat(t.Format) {
		return fmt.Errorf("target %q has invalid format %q", name, t.Format)
	}
	if len(t.Rules) == 0 {
		return fmt.Errorf("target %q has no rules", name)
	}
	for i, rule := range t.Rules {
		if err := ValidateRule(rule); err != nil {
			return fmt.Errorf("target %q rule %d: %w", name, i+1, err)
		}
	}
	return nil
}

func ValidateRule(rule RuleConfig) error {
	kind := strings.TrimSpace(rule.Kind)
	if kind == "" {
		return errors.New("rule requires kind")
	}
	if !harvest.KnownKind(kind) {
		return fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
	if harvest.NeedsHeader(harvest.Kind(kind)) {
		if strings.TrimSpace(rule.Block) == "" || strings.TrimSpace(rule.Type) == "" {
			return fmt.Errorf("%s rule requires block and type", kind)
		}
	}
	return nil
}

// ValidateNames rejects duplicate target names.
func ValidateNames(targets []Target) error {
	seen := map[string]bool{}
	for _, t := range targets {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if seen[key] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[key] = true
	}
	return nil
}

// ValidateOutputs rejects targets that would write the same output file.
func ValidateOutputs(targets []Target) error {
	seen := map[string]string{}
	for _, t := range targets {
		key := strings.ToLower(filepath.ToSlash(filepath.Clean(t.Output)))
		if other, ok := seen[key]; ok {
			return fmt.Errorf("targets %q and %q both write %s", other, t.Name, t.Output)
		}
		seen[key] = t.Name
	}
	return nil
}

func knownFormat(format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
