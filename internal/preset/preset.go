package preset

import (
	"sort"
	"strings"

	"github.com/tuist/toolscan/internal/config"
	"github.com/tuist/toolscan/internal/harvest"
)

type Preset struct {
	Name        string
	Description string
	Target      config.Target
}

var builtin = []Preset{
	{
		Name:        "cline",
		Description: "Cline task handler (switch labels, tool arrays, registerTool calls).",
		Target: config.Target{
			Name:        "ClineTools",
			ArchiveURL:  "https://github.com/cline/cline/archive/refs/heads/main.zip",
			Path:        "src/core/task/index.ts",
			ArchiveName: "downloaded_repo_cline.zip",
			Output:      "cline_available_tools.json",
			Rules: []config.RuleConfig{
				{Kind: string(harvest.KindBranchLabel), Filter: boolPtr(true)},
				{Kind: string(harvest.KindDeclaredArray)},
				{Kind: string(harvest.KindRegistrationCall)},
			},
		},
	},
	{
		Name:        "roo",
		Description: "Roo-Code shared tool definitions (display names, groups, always-available list, ToolUse interfaces).",
		Target: config.Target{
			Name:        "RooCodeTools",
			ArchiveURL:  "https://github.com/RooVetGit/Roo-Code/archive/refs/heads/main.zip",
			Path:        "src/shared/tools.ts",
			ArchiveName: "downloaded_repo_roo.zip",
			Output:      "roo_available_tools.json",
			Rules: []config.RuleConfig{
				{Kind: string(harvest.KindKeyedRecord), Block: "TOOL_DISPLAY_NAMES", Type: "Record<ToolName, string>"},
				{Kind: string(harvest.KindGroupedArray), Block: "TOOL_GROUPS", Type: "Record<ToolGroup, ToolGroupConfig>"},
				{Kind: string(harvest.KindTypedArray), Block: "ALWAYS_AVAILABLE_TOOLS", Type: "ToolName[]"},
				{Kind: string(harvest.KindStructuralInterface)},
				{Kind: string(harvest.KindBranchLabel), Filter: boolPtr(false)},
			},
		},
	},
}

func All() []Preset {
	out := make([]Preset, len(builtin))
	for i, p := range builtin {
		out[i] = p
		out[i].Target = config.MergeTarget(p.Target, config.Target{})
	}
	return out
}

func Lookup(name string) (Preset, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range All() {
		if p.Name == key {
			return p, true
		}
	}
	return Preset{}, false
}

func Names() []string {
	names := make([]string, 0, len(builtin))
	for _, p := range builtin {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Targets returns one target per built-in preset, used when no config file
// exists.
func Targets() []config.Target {
	presets := All()
	out := make([]config.Target, 0, len(presets))
	for _, p := range presets {
		t := p.Target
		t.Preset = p.Name
		out = append(out, t)
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
