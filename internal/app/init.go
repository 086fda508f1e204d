package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tuist/toolscan/internal/config"
	"github.com/tuist/toolscan/internal/plan"
	"github.com/tuist/toolscan/internal/preset"
)

type InitOptions struct {
	Reporter Reporter
}

func Init(root string, opts InitOptions) error {
	reporter := ensureReporter(opts.Reporter)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("init requires an interactive terminal")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if existing, ok := config.Find(rootAbs); ok {
		return fmt.Errorf("%s already exists", existing)
	}

	chosen, err := promptPresets(preset.All())
	if err != nil {
		return err
	}
	return writeScaffold(rootAbs, chosen, reporter)
}

// writeScaffold creates toolscan.toml for the chosen presets and registers
// scratch directories and lock files with git.
func writeScaffold(rootAbs string, chosen []preset.Preset, reporter Reporter) error {
	reporter = ensureReporter(reporter)
	configPath := filepath.Join(rootAbs, config.FileNames[0])
	if err := os.WriteFile(configPath, []byte(renderConfigTemplate(chosen)), 0o644); err != nil {
		return err
	}
	reporter.Info("created " + config.FileNames[0])

	ignoreChanged, err := ensureLine(filepath.Join(rootAbs, ".gitignore"), "/"+plan.ScratchPattern(config.DefaultScratchPrefix))
	if err != nil {
		return err
	}
	if ignoreChanged {
		reporter.Info("updated .gitignore")
	}

	attributesChanged, err := ensureLine(filepath.Join(rootAbs, ".gitattributes"), ".toolscan/locks/** linguist-generated=true")
	if err != nil {
		return err
	}
	if attributesChanged {
		reporter.Info("updated .gitattributes")
	}

	reporter.Info("next steps:")
	reporter.Info("1. Review the targets in " + config.FileNames[0] + ".")
	reporter.Info("2. Run `toolscan scan` to generate tool lists.")
	reporter.Info("3. Commit the lists and `.toolscan/locks`, then use `toolscan status` in CI.")
	return nil
}

func renderConfigTemplate(chosen []preset.Preset) string {
	var b strings.Builder
	b.WriteString("# timeout_seconds = 60\n")
	fmt.Fprintf(&b, "# scratch_prefix = %q\n", config.DefaultScratchPrefix)
	for _, p := range chosen {
		b.WriteString("\n[[target]]\n")
		fmt.Fprintf(&b, "name = %q\n", p.Target.Name)
		fmt.Fprintf(&b, "preset = %q\n", p.Name)
	}
	b.WriteString("\n# [[target]]\n")
	b.WriteString("# name = \"MyAgent\"\n")
	b.WriteString("# archive_url = \"https://github.com/owner/repo/archive/refs/heads/main.zip\"\n")
	b.WriteString("# path = \"src/tools/*.ts\"\n")
	b.WriteString("# format = \"yaml\"\n")
	b.WriteString("#\n")
	b.WriteString("#   [[target.rule]]\n")
	b.WriteString("#   kind = \"branch-label\"\n")
	b.WriteString("#\n")
	b.WriteString("#   [[target.rule]]\n")
	b.WriteString("#   kind = \"typed-array\"\n")
	b.WriteString("#   block = \"TOOLS\"\n")
	b.WriteString("#   type = \"ToolName[]\"\n")
	return b.String()
}

func ensureLine(path, line string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, os.WriteFile(path, []byte(line+"\n"), 0o644)
		}
		return false, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, existing := range strings.Split(content, "\n") {
		if strings.TrimSpace(existing) == strings.TrimSpace(line) {
			return false, nil
		}
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return true, os.WriteFile(path, []byte(content+line+"\n"), 0o644)
}

func promptPresets(presets []preset.Preset) ([]preset.Preset, error) {
	program := tea.NewProgram(newPresetPicker(presets))
	result, err := program.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(presetPicker)
	if !ok {
		return nil, errors.New("unexpected selection result")
	}
	if final.aborted {
		return nil, errors.New("init canceled")
	}
	return final.chosen(), nil
}

type presetPicker struct {
	presets  []preset.Preset
	selected map[int]bool
	cursor   int
	errMsg   string
	aborted  bool
	styles   pickerStyles
}

func newPresetPicker(presets []preset.Preset) presetPicker {
	selected := map[int]bool{}
	for i := range presets {
		selected[i] = true
	}
	return presetPicker{
		presets:  presets,
		selected: selected,
		styles:   defaultPickerStyles(),
	}
}

func (m presetPicker) Init() tea.Cmd {
	return nil
}

func (m presetPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyEnter:
		if len(m.selected) == 0 {
			m.errMsg = "Select at least one preset to continue."
			return m, nil
		}
		return m, tea.Quit
	case tea.KeySpace:
		if m.selected[m.cursor] {
			delete(m.selected, m.cursor)
		} else {
			m.selected[m.cursor] = true
		}
		m.errMsg = ""
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m presetPicker) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Targets to scan"))
	b.WriteString("\n\n")
	for i, p := range m.presets {
		cursor, itemStyle := " ", m.styles.item
		if i == m.cursor {
			cursor, itemStyle = ">", m.styles.itemActive
		}
		mark, markStyle := " ", m.styles.markInactive
		if m.selected[i] {
			mark, markStyle = "x", m.styles.markActive
		}
		fmt.Fprintf(&b, "%s [%s] %s %s\n",
			m.styles.cursor.Render(cursor),
			markStyle.Render(mark),
			itemStyle.Render(p.Name),
			m.styles.hint.Render(p.Description),
		)
	}
	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.error.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.hint.Render("up/down to move | space to toggle | enter to confirm"))
	return b.String()
}

func (m presetPicker) chosen() []preset.Preset {
	out := make([]preset.Preset, 0, len(m.selected))
	for i, p := range m.presets {
		if m.selected[i] {
			out = append(out, p)
		}
	}
	return out
}

type pickerStyles struct {
	title        lipgloss.Style
	item         lipgloss.Style
	itemActive   lipgloss.Style
	cursor       lipgloss.Style
	markActive   lipgloss.Style
	markInactive lipgloss.Style
	hint         lipgloss.Style
	error        lipgloss.Style
}

func defaultPickerStyles() pickerStyles {
	return pickerStyles{
		title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		item:         lipgloss.NewStyle().Foreground(lipgloss.Color("251")),
		itemActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		cursor:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		markActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		markInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
		hint:         lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		error:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}
