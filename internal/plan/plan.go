package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tuist/toolscan/internal/config"
	"github.com/tuist/toolscan/internal/document"
	"github.com/tuist/toolscan/internal/fetch"
	"github.com/tuist/toolscan/internal/harvest"
	"github.com/tuist/toolscan/internal/preset"
)

type Plan struct {
	Root          string
	ConfigPath    string
	ScratchPrefix string
	Timeout       time.Duration
	Targets       []TargetPlan
}

type TargetPlan struct {
	Target     config.Target
	Rules      []harvest.Rule
	Format     document.Format
	ScratchDir string
	OutputPath string
	Request    fetch.Request
}

type Options struct {
	// Only restricts the plan to targets whose name matches one of these
	// doublestar patterns.
	Only []string
}

func (t TargetPlan) Name() string {
	return t.Target.Name
}

// Build resolves the targets in root's config file, or every built-in preset
// when root has none. Targets keep their configured order.
func Build(root string, opts Options) (Plan, error) {
	file, ok, err := config.Load(root)
	if err != nil {
		return Plan{}, err
	}

	cfg := config.ApplyDefaults(config.Config{})
	targets := preset.Targets()
	if ok {
		cfg = file.Config
		targets = cfg.Targets
	}

	resolved := make([]config.Target, 0, len(targets))
	for i, target := range targets {
		t, err := resolveTarget(target)
		if err != nil {
			if ok {
				return Plan{}, fmt.Errorf("%s: target %d: %w", file.Path, i+1, err)
			}
			return Plan{}, err
		}
		resolved = append(resolved, t)
	}
	if err := config.ValidateNames(resolved); err != nil {
		return Plan{}, err
	}
	if err := config.ValidateOutputs(resolved); err != nil {
		return Plan{}, err
	}

	selected, err := filterTargets(resolved, opts.Only)
	if err != nil {
		return Plan{}, err
	}

	pl := Plan{
		Root:          root,
		ConfigPath:    file.Path,
		ScratchPrefix: cfg.ScratchPrefix,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	for _, target := range selected {
		tp, err := buildTarget(root, cfg.ScratchPrefix, target)
		if err != nil {
			return Plan{}, err
		}
		pl.Targets = append(pl.Targets, tp)
	}
	return pl, nil
}

func resolveTarget(target config.Target) (config.Target, error) {
	if name := strings.TrimSpace(target.Preset); name != "" {
		p, found := preset.Lookup(name)
		if !found {
			return config.Target{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(preset.Names(), ", "))
		}
		target = config.MergeTarget(p.Target, target)
	}
	target = config.ApplyTargetDefaults(target)
	if err := config.ValidateTarget(target); err != nil {
		return config.Target{}, err
	}
	return target, nil
}

func buildTarget(root, scratchPrefix string, target config.Target) (TargetPlan, error) {
	rules, err := CompileRules(target.Rules)
	if err != nil {
		return TargetPlan{}, fmt.Errorf("target %q: %w", target.Name, err)
	}
	format, err := document.ParseFormat(target.Format)
	if err != nil {
		return TargetPlan{}, fmt.Errorf("target %q: %w", target.Name, err)
	}

	scratchDir := ScratchDir(root, scratchPrefix, target.Name)
	outputPath := target.Output
	if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(root, filepath.FromSlash(outputPath))
	}

	return TargetPlan{
		Target:     target,
		Rules:      rules,
		Format:     format,
		ScratchDir: scratchDir,
		OutputPath: outputPath,
		Request: fetch.Request{
			ArchiveURL:   target.ArchiveURL,
			RelativePath: target.Path,
			ScratchDir:   scratchDir,
			ArchiveName:  target.ArchiveName,
		},
	}, nil
}

func CompileRules(rules []config.RuleConfig) ([]harvest.Rule, error) {
	out := make([]harvest.Rule, 0, len(rules))
	for _, rc := range rules {
		rule, err := harvest.Compile(harvest.Spec{
			Kind:   harvest.Kind(strings.TrimSpace(rc.Kind)),
			Block:  rc.Block,
			Type:   rc.Type,
			Filter: rc.FilterEnabled(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func ScratchDir(root, prefix, name string) string {
	return filepath.Join(root, prefix+"_"+name)
}

// ScratchPattern matches every scratch directory for prefix, relative to
// the root.
func ScratchPattern(prefix string) string {
	return prefix + "_*"
}

func filterTargets(targets []config.Target, patterns []string) ([]config.Target, error) {
	if len(patterns) == 0 {
		return targets, nil
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid target pattern %q", pattern)
		}
	}
	var out []config.Target
	for _, target := range targets {
		for _, pattern := range patterns {
			if matched, _ := doublestar.Match(strings.ToLower(pattern), strings.ToLower(target.Name)); matched {
				out = append(out, target)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no targets match " + strings.Join(patterns, ", "))
	}
	return out, nil
}
