package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/tuist/toolscan/internal/checks"
	"github.com/tuist/toolscan/internal/digest"
	"github.com/tuist/toolscan/internal/document"
	"github.com/tuist/toolscan/internal/fetch"
	"github.com/tuist/toolscan/internal/harvest"
	"github.com/tuist/toolscan/internal/locks"
	"github.com/tuist/toolscan/internal/plan"
	"github.com/tuist/toolscan/internal/preset"
)

type ScanOptions struct {
	Targets    []string
	DryRun     bool
	Reporter   Reporter
	Logger     *zerolog.Logger
	HTTPClient *http.Client
}

type HarvestOptions struct {
	Preset    string
	Out       string
	SourceURL string
	Reporter  Reporter
}

type CheckOptions struct {
	Reporter Reporter
}

type StatusOptions struct {
	Reporter Reporter
}

type CleanOptions struct {
	DryRun      bool
	ScratchOnly bool
	Orphans     bool
	Reporter    Reporter
}

// Scan runs fetch, harvest and write for every planned target in order. A
// failing target is reported and does not stop the ones after it.
func Scan(ctx context.Context, root string, opts ScanOptions) error {
	pl, err := plan.Build(root, plan.Options{Only: opts.Targets})
	if err != nil {
		return err
	}
	if len(pl.Targets) == 0 {
		return errors.New("no targets configured")
	}

	reporter := ensureReporter(opts.Reporter)
	log := ensureLogger(opts.Logger)

	base := fetch.New(pl.Timeout)
	if opts.HTTPClient != nil {
		base.HTTP = opts.HTTPClient
	}
	base.Log = log

	progress := reporter.Progress("Scanning", len(pl.Targets))
	failed := 0
	for _, tp := range pl.Targets {
		progress.Increment(tp.Name())
		fetcher := *base
		fetcher.Reporter = targetSteps{reporter: reporter, target: tp.Name()}
		if err := scanTarget(ctx, root, tp, &fetcher, reporter, log, opts.DryRun); err != nil {
			failed++
			reporter.Failure(tp.Name(), err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	progress.Done()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(pl.Targets))
	}
	return nil
}

func scanTarget(ctx context.Context, root string, tp plan.TargetPlan, fetcher *fetch.Fetcher, reporter Reporter, log zerolog.Logger, dryRun bool) error {
	reporter.Step(tp.Name(), "starting script to extract available tools")

	text, err := fetcher.Fetch(ctx, tp.Request)
	if err != nil {
		return fmt.Errorf("failed to fetch source code: %w", err)
	}

	names := harvest.Harvest(text, tp.Rules)
	if e := log.Debug(); e.Enabled() {
		e.Str("target", tp.Name()).Interface("rules", harvest.Contributions(text, tp.Rules)).Int("unique", len(names)).Msg("harvested")
	}
	reporter.Tools(tp.Name(), names)
	if len(names) == 0 {
		reporter.Step(tp.Name(), "no tool names could be extracted; document not created")
		return nil
	}

	output := relPath(root, tp.OutputPath)
	if dryRun {
		reporter.Info("dry-run " + tp.Name() + " -> " + output)
		return nil
	}

	doc := document.Build(names, tp.Target.ArchiveURL)
	data, err := document.Write(tp.OutputPath, doc, tp.Format)
	if err != nil {
		return fmt.Errorf("error saving data to %s: %w", output, err)
	}
	reporter.Saved(tp.Name(), output)

	return locks.Write(root, locks.LockFile{
		Target:     tp.Name(),
		ArchiveURL: tp.Target.ArchiveURL,
		Path:       tp.Target.Path,
		SourceHash: digest.HashString(text),
		NamesHash:  digest.HashNames(names),
		Output:     output,
		OutputHash: digest.HashBytes(data),
		ToolCount:  len(names),
	})
}

// HarvestFile harvests a local file with a preset's rules. With opts.Out set
// the document is written there as well.
func HarvestFile(path string, opts HarvestOptions) ([]string, error) {
	reporter := ensureReporter(opts.Reporter)

	name := opts.Preset
	if strings.TrimSpace(name) == "" {
		name = "cline"
	}
	p, ok := preset.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(preset.Names(), ", "))
	}
	rules, err := plan.CompileRules(p.Target.Rules)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	names := harvest.Harvest(string(data), rules)
	reporter.Tools(filepath.Base(path), names)

	if strings.TrimSpace(opts.Out) == "" {
		return names, nil
	}
	if len(names) == 0 {
		reporter.Info("no tool names could be extracted; document not created")
		return names, nil
	}
	sourceURL := opts.SourceURL
	if sourceURL == "" {
		sourceURL = filepath.ToSlash(path)
	}
	doc := document.Build(names, sourceURL)
	if _, err := document.Write(opts.Out, doc, document.DetectFormat(opts.Out)); err != nil {
		return names, fmt.Errorf("error saving data to %s: %w", opts.Out, err)
	}
	reporter.Saved(filepath.Base(path), opts.Out)
	return names, nil
}

func Check(root string, opts CheckOptions) error {
	pl, err := plan.Build(root, plan.Options{})
	if err != nil {
		return err
	}
	if len(pl.Targets) == 0 {
		return errors.New("no targets configured")
	}

	reporter := ensureReporter(opts.Reporter)
	progress := reporter.Progress("Validating", len(pl.Targets))
	defer progress.Done()

	checker := checks.Checker{}
	for _, tp := range pl.Targets {
		output := relPath(root, tp.OutputPath)
		if _, err := os.Stat(tp.OutputPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("missing output: %s", output)
			}
			return err
		}
		progress.Increment(tp.Name() + " -> " + output)
		if err := checker.ValidateFile(tp.OutputPath, checks.Options{
			SourceURL: tp.Target.ArchiveURL,
			Reporter:  reporter,
		}); err != nil {
			return fmt.Errorf("check failed for %s: %w", output, err)
		}
	}
	return nil
}

func Status(root string, opts StatusOptions) error {
	pl, err := plan.Build(root, plan.Options{})
	if err != nil {
		return err
	}
	if len(pl.Targets) == 0 {
		return errors.New("no targets configured")
	}

	reporter := ensureReporter(opts.Reporter)
	missing := 0
	modified := 0
	upToDate := 0

	for _, tp := range pl.Targets {
		output := relPath(root, tp.OutputPath)
		kind, err := targetStatus(root, tp, output)
		if err != nil {
			return err
		}
		switch kind {
		case StatusMissing:
			missing++
		case StatusModified:
			modified++
		default:
			upToDate++
		}
		reporter.Status(kind, tp.Name(), output)
	}

	reporter.StatusSummary(upToDate, modified, missing)
	if modified > 0 || missing > 0 {
		return errors.New("tool lists out of date")
	}
	return nil
}

func targetStatus(root string, tp plan.TargetPlan, output string) (StatusKind, error) {
	hash, err := digest.HashFile(tp.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusMissing, nil
		}
		return "", err
	}
	lock, err := locks.Read(root, tp.Name())
	if err != nil {
		return "", err
	}
	if lock == nil {
		return StatusMissing, nil
	}
	if lock.OutputHash != hash ||
		lock.Output != output ||
		lock.ArchiveURL != tp.Target.ArchiveURL ||
		lock.Path != tp.Target.Path {
		return StatusModified, nil
	}
	return StatusOK, nil
}

func Clean(root string, opts CleanOptions) error {
	pl, err := plan.Build(root, plan.Options{})
	if err != nil {
		return err
	}

	reporter := ensureReporter(opts.Reporter)

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	removed := 0
	missing := 0
	lockRemoved := 0

	scratchDirs, err := doublestar.Glob(os.DirFS(rootAbs), plan.ScratchPattern(pl.ScratchPrefix))
	if err != nil {
		return fmt.Errorf("glob scratch directories: %w", err)
	}
	for _, match := range scratchDirs {
		abs, err := resolveWithinRoot(rootAbs, match)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		if !opts.DryRun {
			if err := os.RemoveAll(abs); err != nil {
				return err
			}
		}
		removed++
		reporter.CleanRemoved(match)
	}

	if opts.ScratchOnly {
		reporter.CleanSummary(removed, missing, lockRemoved)
		return nil
	}

	planned := map[string]bool{}
	for _, tp := range pl.Targets {
		planned[tp.Name()] = true

		output := relPath(rootAbs, tp.OutputPath)
		if abs, err := resolveWithinRoot(rootAbs, output); err != nil {
			reporter.Info("skipped " + tp.OutputPath + ": " + err.Error())
		} else {
			wasRemoved, wasMissing, err := removePath(abs, opts.DryRun)
			if err != nil {
				return err
			}
			if wasRemoved {
				removed++
				reporter.CleanRemoved(output)
			}
			if wasMissing {
				missing++
				reporter.CleanMissing(output)
			}
		}

		lockPath := locks.LockPath(rootAbs, tp.Name())
		wasRemoved, wasMissing, err := removePath(lockPath, opts.DryRun)
		if err != nil {
			return err
		}
		if wasRemoved {
			lockRemoved++
			reporter.CleanRemoved(relPath(rootAbs, lockPath))
		}
		if wasMissing {
			missing++
			reporter.CleanMissing(relPath(rootAbs, lockPath))
		}
	}

	if opts.Orphans {
		err := filepath.WalkDir(locks.Dir(rootAbs), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".lock") {
				return nil
			}

			lock, err := locks.ReadFile(path)
			if err != nil {
				return err
			}
			target := targetFromLock(path)
			if lock != nil && strings.TrimSpace(lock.Target) != "" {
				target = lock.Target
			}
			if planned[target] {
				return nil
			}

			if lock != nil && strings.TrimSpace(lock.Output) != "" {
				if abs, err := resolveWithinRoot(rootAbs, lock.Output); err != nil {
					reporter.Info("skipped " + lock.Output + ": " + err.Error())
				} else {
					wasRemoved, wasMissing, err := removePath(abs, opts.DryRun)
					if err != nil {
						return err
					}
					if wasRemoved {
						removed++
						reporter.CleanRemoved(lock.Output)
					}
					if wasMissing {
						missing++
						reporter.CleanMissing(lock.Output)
					}
				}
			}
			wasRemoved, _, err := removePath(path, opts.DryRun)
			if err != nil {
				return err
			}
			if wasRemoved {
				lockRemoved++
				reporter.CleanRemoved(relPath(rootAbs, path))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	reporter.CleanSummary(removed, missing, lockRemoved)
	return nil
}

func ensureLogger(logger *zerolog.Logger) zerolog.Logger {
	if logger == nil {
		return zerolog.Nop()
	}
	return *logger
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func resolveWithinRoot(rootAbs, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("refusing to remove absolute path %q", rel)
	}
	abs := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
	rootWithSep := rootAbs + string(filepath.Separator)
	if abs == rootAbs || !strings.HasPrefix(abs, rootWithSep) {
		return "", fmt.Errorf("refusing to remove path outside root: %s", rel)
	}
	return abs, nil
}

func removePath(path string, dryRun bool) (removed bool, missing bool, err error) {
	if dryRun {
		return false, false, nil
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, true, nil
		}
		return false, false, err
	}
	return true, false, nil
}

func targetFromLock(lockPath string) string {
	return strings.TrimSuffix(filepath.Base(lockPath), ".lock")
}
