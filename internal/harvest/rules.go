package harvest

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindBranchLabel         Kind = "branch-label"
	KindDeclaredArray       Kind = "declared-array"
	KindRegistrationCall    Kind = "registration-call"
	KindKeyedRecord         Kind = "keyed-record"
	KindTypedArray          Kind = "typed-array"
	KindStructuralInterface Kind = "structural-interface"
	KindGroupedArray        Kind = "grouped-array"
)

// Rule extracts candidate names from the full source text. Extract must not
// depend on any other rule's output.
type Rule struct {
	Name    string
	Extract func(text string) []string
}

// Spec describes a rule in configuration terms. Block and Type are only
// used by the record and array kinds.
type Spec struct {
	Kind   Kind
	Block  string
	Type   string
	Filter bool
}

var (
	caseLabelRe        = regexp.MustCompile(`case\s+["']([^"']+)["']\s*:`)
	declaredArrayRe    = regexp.MustCompile(`(?:tools|commands)\s*:\s*\[([^\]]+)\]`)
	quotedRe           = regexp.MustCompile(`["']([^"']+)["']`)
	registerToolRe     = regexp.MustCompile(`registerTool\s*\(\s*["']([^"']+)["']`)
	recordKeyRe        = regexp.MustCompile(`(?m)^\s*([a-zA-Z0-9_]+)\s*:`)
	toolsArrayRe       = regexp.MustCompile(`tools\s*:\s*\[([^\]]+)\]`)
	interfaceToolUseRe = regexp.MustCompile(`interface\s+\w+ToolUse\s+extends\s+ToolUse\s*\{\s*name\s*:\s*["']([^"']+)["']`)
)

var knownToolNames = map[string]bool{
	"thinking":              true,
	"attempt_completion":    true,
	"plan_mode_response":    true,
	"ask_followup_question": true,
}

func Kinds() []Kind {
	return []Kind{
		KindBranchLabel,
		KindDeclaredArray,
		KindRegistrationCall,
		KindKeyedRecord,
		KindTypedArray,
		KindStructuralInterface,
		KindGroupedArray,
	}
}

func KnownKind(kind string) bool {
	for _, k := range Kinds() {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// NeedsHeader reports whether the kind locates a named declaration and so
// requires Spec.Block and Spec.Type.
func NeedsHeader(kind Kind) bool {
	switch kind {
	case KindKeyedRecord, KindTypedArray, KindGroupedArray:
		return true
	default:
		return false
	}
}

func Compile(spec Spec) (Rule, error) {
	if NeedsHeader(spec.Kind) {
		if strings.TrimSpace(spec.Block) == "" || strings.TrimSpace(spec.Type) == "" {
			return Rule{}, fmt.Errorf("%s rule requires block and type", spec.Kind)
		}
	}
	switch spec.Kind {
	case KindBranchLabel:
		return BranchLabel(spec.Filter), nil
	case KindDeclaredArray:
		return DeclaredArray(), nil
	case KindRegistrationCall:
		return RegistrationCall(), nil
	case KindKeyedRecord:
		return KeyedRecord(spec.Block, spec.Type), nil
	case KindTypedArray:
		return TypedArray(spec.Block, spec.Type), nil
	case KindStructuralInterface:
		return StructuralInterface(), nil
	case KindGroupedArray:
		return GroupedArray(spec.Block, spec.Type), nil
	default:
		return Rule{}, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}

// BranchLabel collects `case "name":` labels. With filter set, only labels
// that look like tool names are kept.
func BranchLabel(filter bool) Rule {
	return Rule{
		Name: string(KindBranchLabel),
		Extract: func(text string) []string {
			var names []string
			for _, match := range caseLabelRe.FindAllStringSubmatch(text, -1) {
				name := match[1]
				if filter && !looksLikeTool(name) {
					continue
				}
				names = append(names, name)
			}
			return names
		},
	}
}

func DeclaredArray() Rule {
	return Rule{
		Name: string(KindDeclaredArray),
		Extract: func(text string) []string {
			var names []string
			for _, match := range declaredArrayRe.FindAllStringSubmatch(text, -1) {
				names = append(names, quotedLiterals(match[1])...)
			}
			return names
		},
	}
}

func RegistrationCall() Rule {
	return Rule{
		Name: string(KindRegistrationCall),
		Extract: func(text string) []string {
			return firstGroups(registerToolRe, text)
		},
	}
}

// KeyedRecord collects the line-leading keys of `block: type = { ... }`.
func KeyedRecord(block, typ string) Rule {
	re := regexp.MustCompile(headerPattern(block, typ) + `\{([^}]+)\}`)
	return Rule{
		Name: string(KindKeyedRecord) + ":" + block,
		Extract: func(text string) []string {
			match := re.FindStringSubmatch(text)
			if match == nil {
				return nil
			}
			return firstGroups(recordKeyRe, match[1])
		},
	}
}

// TypedArray collects the quoted literals of `block: type = [ ... ]`.
func TypedArray(block, typ string) Rule {
	re := regexp.MustCompile(headerPattern(block, typ) + `\[([^\]]+)\]`)
	return Rule{
		Name: string(KindTypedArray) + ":" + block,
		Extract: func(text string) []string {
			match := re.FindStringSubmatch(text)
			if match == nil {
				return nil
			}
			return quotedLiterals(match[1])
		},
	}
}

// GroupedArray collects the literals of every `tools: [...]` inside
// `block: type = { ... }`.
func GroupedArray(block, typ string) Rule {
	re := regexp.MustCompile(headerPattern(block, typ) + `\{([^}]+)\}`)
	return Rule{
		Name: string(KindGroupedArray) + ":" + block,
		Extract: func(text string) []string {
			match := re.FindStringSubmatch(text)
			if match == nil {
				return nil
			}
			var names []string
			for _, group := range toolsArrayRe.FindAllStringSubmatch(match[1], -1) {
				names = append(names, quotedLiterals(group[1])...)
			}
			return names
		},
	}
}

func StructuralInterface() Rule {
	return Rule{
		Name: string(KindStructuralInterface),
		Extract: func(text string) []string {
			return firstGroups(interfaceToolUseRe, text)
		},
	}
}

func looksLikeTool(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(name, "_"):
		return true
	case strings.HasSuffix(name, "File"), strings.HasSuffix(name, "Files"):
		return true
	case strings.Contains(lower, "command"), strings.Contains(lower, "mcp"), strings.Contains(lower, "action"):
		return true
	}
	return knownToolNames[name]
}

func quotedLiterals(block string) []string {
	return firstGroups(quotedRe, block)
}

func firstGroups(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match[1])
	}
	return out
}

// headerPattern matches `block: type =` where the type's comma-separated
// parameters may be separated by any whitespace.
func headerPattern(block, typ string) string {
	parts := strings.Split(typ, ",")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(strings.TrimSpace(part))
	}
	return regexp.QuoteMeta(strings.TrimSpace(block)) + `\s*:\s*` + strings.Join(parts, `,\s*`) + `\s*=\s*`
}
