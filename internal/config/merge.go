package config

import "strings"

// MergeTarget overlays the non-empty fields of override onto base. Rules are
// replaced as a whole. Renaming the target drops the base archive and output
// file names so they are derived from the new name.
func MergeTarget(base, override Target) Target {
	out := base
	if name := strings.TrimSpace(override.Name); name != "" {
		if !strings.EqualFold(name, strings.TrimSpace(base.Name)) {
			out.ArchiveName = ""
			out.Output = ""
		}
		out.Name = override.Name
	}
	if strings.TrimSpace(override.Preset) != "" {
		out.Preset = override.Preset
	}
	if strings.TrimSpace(override.ArchiveURL) != "" {
		out.ArchiveURL = override.ArchiveURL
	}
	if strings.TrimSpace(override.Path) != "" {
		out.Path = override.Path
	}
	if strings.TrimSpace(override.ArchiveName) != "" {
		out.ArchiveName = override.ArchiveName
	}
	if strings.TrimSpace(override.Output) != "" {
		out.Output = override.Output
	}
	if strings.TrimSpace(override.Format) != "" {
		out.Format = override.Format
	}
	if len(override.Rules) > 0 {
		out.Rules = cloneRules(override.Rules)
	} else {
		out.Rules = cloneRules(base.Rules)
	}
	return out
}

// ApplyTargetDefaults derives archive and output file names from the target
// name when they are unset.
func ApplyTargetDefaults(t Target) Target {
	slug := strings.ToLower(strings.TrimSpace(t.Name))
	if strings.TrimSpace(t.ArchiveName) == "" {
		t.ArchiveName = "downloaded_repo_" + slug + ".zip"
	}
	if strings.TrimSpace(t.Format) == "" {
		t.Format = "json"
	}
	if strings.TrimSpace(t.Output) == "" {
		ext := ".json"
		if f := strings.ToLower(t.Format); f == "yaml" || f == "yml" {
			ext = ".yaml"
		}
		t.Output = slug + "_available_tools" + ext
	}
	return t
}

func cloneRules(rules []RuleConfig) []RuleConfig {
	if len(rules) == 0 {
		return nil
	}
	out := make([]RuleConfig, len(rules))
	copy(out, rules)
	return out
}
