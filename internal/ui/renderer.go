package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/tuist/toolscan/internal/app"
)

type Options struct {
	NoColor bool
	Out     io.Writer
	// Quiet hides per-step fetch messages.
	Quiet bool
}

type Renderer struct {
	out     io.Writer
	isTTY   bool
	quiet   bool
	styles  styles
}

type styles struct {
	info    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	error   lipgloss.Style
	label   lipgloss.Style
	target  lipgloss.Style
	tool    lipgloss.Style
	summary lipgloss.Style
}

func NewRenderer(opts Options) *Renderer {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	profile := termenv.EnvColorProfile()
	if opts.NoColor || !isTTY {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)

	return &Renderer{
		out:     out,
		isTTY:   isTTY,
		quiet:   opts.Quiet,
		styles: styles{
			info:    lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
			ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
			warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
			error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			target:  lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
			tool:    lipgloss.NewStyle().Foreground(lipgloss.Color("105")).Bold(true),
			summary: lipgloss.NewStyle().Bold(true),
		},
	}
}

func (r *Renderer) Info(message string) {
	r.println(r.styles.info.Render(message))
}

func (r *Renderer) Step(target, detail string) {
	if r.quiet {
		return
	}
	r.println(r.styles.target.Render(target) + " " + r.styles.label.Render(detail))
}

func (r *Renderer) Tool(name, detail string) {
	label := r.styles.tool.Render("check")
	msg := label + " " + r.styles.label.Render(name)
	if strings.TrimSpace(detail) != "" {
		msg += ": " + detail
	}
	r.println(msg)
}

func (r *Renderer) Failure(target string, err error) {
	r.println(r.styles.error.Render("failed") + " " + r.styles.target.Render(target) + ": " + err.Error())
}

// Tools prints the sorted unique names, or a notice when none were found.
func (r *Renderer) Tools(target string, names []string) {
	if len(names) == 0 {
		r.println(r.styles.warn.Render("no tools") + " " + r.styles.target.Render(target))
		return
	}
	r.println(fmt.Sprintf("%s %s (%d)", r.styles.ok.Render("extracted"), r.styles.target.Render(target), len(names)))
	for _, name := range names {
		r.println("  - " + name)
	}
}

func (r *Renderer) Saved(target, path string) {
	r.println(r.styles.ok.Render("saved") + " " + r.styles.target.Render(target) + " -> " + path)
}

func (r *Renderer) Status(kind app.StatusKind, target, output string) {
	style := r.styles.label
	switch kind {
	case app.StatusOK:
		style = r.styles.ok
	case app.StatusMissing:
		style = r.styles.error
	case app.StatusModified:
		style = r.styles.warn
	}
	r.println(fmt.Sprintf("%s %s -> %s", style.Render(string(kind)), target, output))
}

func (r *Renderer) StatusSummary(ok, modified, missing int) {
	msg := fmt.Sprintf("summary: %d ok, %d modified, %d missing", ok, modified, missing)
	r.println(r.styles.summary.Render(msg))
}

func (r *Renderer) CleanRemoved(path string) {
	r.println(r.styles.ok.Render("removed") + " " + path)
}

func (r *Renderer) CleanMissing(path string) {
	r.println(r.styles.warn.Render("missing") + " " + path)
}

func (r *Renderer) CleanSummary(removed, missing, lockRemoved int) {
	msg := fmt.Sprintf("cleaned %d paths, %d missing, removed %d lockfiles", removed, missing, lockRemoved)
	r.println(r.styles.summary.Render(msg))
}

// Progress draws a bar per step on a TTY and a plain "[i/n] label" line
// otherwise. Single-step runs get no progress output.
func (r *Renderer) Progress(label string, total int) app.ProgressReporter {
	if total <= 1 {
		return noopProgress{}
	}
	p := &progressReporter{r: r, total: total, label: label}
	if r.isTTY {
		bar := progress.New(progress.WithWidth(28), progress.WithDefaultGradient())
		p.bar = &bar
	}
	return p
}

func (r *Renderer) println(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	fmt.Fprintln(r.out, message)
}

type progressReporter struct {
	r     *Renderer
	bar   *progress.Model
	total int
	done  int
	label string
}

func (p *progressReporter) Increment(label string) {
	if label != "" {
		p.label = label
	}
	p.done++
	p.draw()
}

func (p *progressReporter) Done() {
	if p.bar == nil || p.done >= p.total {
		return
	}
	p.done = p.total
	p.draw()
}

func (p *progressReporter) draw() {
	if p.bar == nil {
		p.r.Info(fmt.Sprintf("[%d/%d] %s", p.done, p.total, p.label))
		return
	}
	label := p.label
	if len(label) > 64 {
		label = label[:61] + "..."
	}
	fmt.Fprintf(p.r.out, "%s %d/%d %s\n", p.bar.ViewAs(float64(p.done)/float64(p.total)), p.done, p.total, label)
}

type noopProgress struct{}

func (noopProgress) Increment(string) {}
func (noopProgress) Done()            {}
