package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tuist/toolscan/internal/app"
	"github.com/tuist/toolscan/internal/ui"
)

type CLI struct {
	NoColor bool       `help:"Disable color output."`
	Path    string     `help:"Run as if in this directory."`
	Debug   bool       `help:"Write debug logs to stderr." env:"TOOLSCAN_DEBUG"`
	Quiet   bool       `short:"q" help:"Hide per-step progress messages."`
	Scan    ScanCmd    `cmd:"" default:"1" help:"Download archives and extract tool lists."`
	Harvest HarvestCmd `cmd:"" help:"Extract tool names from a local file."`
	Status  StatusCmd  `cmd:"" help:"Report missing or modified tool lists."`
	Check   CheckCmd   `cmd:"" help:"Validate generated tool lists."`
	Clean   CleanCmd   `cmd:"" help:"Remove scratch directories, tool lists and lockfiles."`
	Init    InitCmd    `cmd:"" help:"Create a toolscan.toml in this repo."`
}

type ScanCmd struct {
	Target []string `help:"Only scan targets matching these glob patterns."`
	DryRun bool     `help:"Harvest without writing tool lists or lockfiles."`
}

type HarvestCmd struct {
	File      string `arg:"" type:"existingfile" help:"Source file to read."`
	Preset    string `help:"Preset whose rules to apply." default:"cline"`
	Out       string `help:"Write a tool list to this path."`
	SourceURL string `help:"Value for source_file_url in the written list."`
}

type StatusCmd struct{}

type CheckCmd struct{}

type CleanCmd struct {
	DryRun      bool `help:"Print actions without removing files."`
	ScratchOnly bool `help:"Only remove scratch directories."`
	Orphans     bool `help:"Also remove outputs for targets no longer in config (from lockfiles)."`
}

type InitCmd struct{}

type Context struct {
	Ctx      context.Context
	Root     string
	Reporter app.Reporter
	Logger   *zerolog.Logger
}

func (c *ScanCmd) Run(ctx *Context) error {
	return app.Scan(ctx.Ctx, ctx.Root, app.ScanOptions{
		Targets:  c.Target,
		DryRun:   c.DryRun,
		Reporter: ctx.Reporter,
		Logger:   ctx.Logger,
	})
}

func (c *HarvestCmd) Run(ctx *Context) error {
	_, err := app.HarvestFile(c.File, app.HarvestOptions{
		Preset:    c.Preset,
		Out:       c.Out,
		SourceURL: c.SourceURL,
		Reporter:  ctx.Reporter,
	})
	return err
}

func (c *StatusCmd) Run(ctx *Context) error {
	return app.Status(ctx.Root, app.StatusOptions{Reporter: ctx.Reporter})
}

func (c *CheckCmd) Run(ctx *Context) error {
	return app.Check(ctx.Root, app.CheckOptions{Reporter: ctx.Reporter})
}

func (c *CleanCmd) Run(ctx *Context) error {
	return app.Clean(ctx.Root, app.CleanOptions{
		DryRun:      c.DryRun,
		ScratchOnly: c.ScratchOnly,
		Orphans:     c.Orphans,
		Reporter:    ctx.Reporter,
	})
}

func (c *InitCmd) Run(ctx *Context) error {
	return app.Init(ctx.Root, app.InitOptions{Reporter: ctx.Reporter})
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	parser := kong.Must(&cli,
		kong.Name("toolscan"),
		kong.Description("Extract agent tool names from GitHub source archives."),
		kong.UsageOnError(),
	)
	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	baseDir, err := resolveBaseDir(cwd, cli.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	root := app.FindRoot(baseDir)
	noColor := cli.NoColor || os.Getenv("NO_COLOR") != ""
	reporter := ui.NewRenderer(ui.Options{NoColor: noColor, Out: os.Stdout, Quiet: cli.Quiet})
	logger := newLogger(cli.Debug, noColor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&Context{Ctx: ctx, Root: root, Reporter: reporter, Logger: &logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newLogger(debug, noColor bool) zerolog.Logger {
	if !debug {
		return zerolog.Nop()
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func resolveBaseDir(cwd, override string) (string, error) {
	if strings.TrimSpace(override) == "" {
		return cwd, nil
	}
	path := override
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return path, nil
}
