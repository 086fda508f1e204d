package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

type Request struct {
	ArchiveURL   string
	RelativePath string
	ScratchDir   string
	ArchiveName  string
}

type StepReporter interface {
	Step(detail string)
}

type Fetcher struct {
	HTTP     *http.Client
	Reporter StepReporter
	Log      zerolog.Logger
}

// New returns a Fetcher whose HTTP client uses timeout; zero means the
// request may block indefinitely.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		HTTP: &http.Client{Timeout: timeout},
		Log:  zerolog.Nop(),
	}
}

// Fetch downloads req.ArchiveURL into req.ScratchDir, expands the whole
// archive there and returns the contents of req.RelativePath under the
// archive's root folder. Downloaded and expanded files are left in place.
// Every failure is returned as *Error.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.ScratchDir) == "" {
		return "", newError(ReasonIO, req, errors.New("scratch directory is required"))
	}
	archiveName := req.ArchiveName
	if strings.TrimSpace(archiveName) == "" {
		archiveName = "archive.zip"
	}

	f.step("creating temporary directory: " + req.ScratchDir)
	if err := os.MkdirAll(req.ScratchDir, 0o755); err != nil {
		return "", newError(ReasonIO, req, err)
	}

	archivePath := filepath.Join(req.ScratchDir, archiveName)
	if err := f.download(ctx, req, archivePath); err != nil {
		return "", err
	}

	f.step("extracting archive to: " + req.ScratchDir)
	root, err := f.extract(req, archivePath)
	if err != nil {
		return "", err
	}
	f.step("determined archive root directory: " + root)

	rootDir := filepath.Join(req.ScratchDir, root)
	target, err := resolveTarget(rootDir, req)
	if err != nil {
		return "", err
	}

	f.step("attempting to read target file: " + target)
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(ReasonNotFound, req, fmt.Errorf("check the contents of %s", rootDir))
		}
		return "", newError(ReasonIO, req, err)
	}
	if !utf8.Valid(data) {
		return "", newError(ReasonIO, req, fmt.Errorf("%s is not valid UTF-8", req.RelativePath))
	}
	f.step("successfully read target file: " + req.RelativePath)
	f.Log.Debug().Str("path", target).Int("bytes", len(data)).Msg("target file read")
	return string(data), nil
}

func (f *Fetcher) download(ctx context.Context, req Request, path string) error {
	f.step("fetching archive from: " + req.ArchiveURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.ArchiveURL, nil)
	if err != nil {
		return newError(ReasonNetwork, req, err)
	}
	httpReq.Header.Set("User-Agent", "toolscan")

	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return newError(ReasonNetwork, req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fetchErr := newError(ReasonStatus, req, fmt.Errorf("unexpected status %s", resp.Status))
		fetchErr.StatusCode = resp.StatusCode
		return fetchErr
	}

	f.step("saving archive to: " + path)
	out, err := os.Create(path)
	if err != nil {
		return newError(ReasonIO, req, err)
	}
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return newError(ReasonIO, req, err)
		}
		return newError(ReasonNetwork, req, err)
	}
	if err := out.Close(); err != nil {
		return newError(ReasonIO, req, err)
	}
	f.step("successfully saved archive")
	f.Log.Debug().Str("url", req.ArchiveURL).Str("path", path).Int64("bytes", written).Msg("archive saved")
	return nil
}

// resolveTarget maps the relative path under rootDir. The path is taken
// literally when that file exists; otherwise a path containing glob
// metacharacters must match exactly one regular file.
func resolveTarget(rootDir string, req Request) (string, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(req.RelativePath), "/")
	literal := filepath.Join(rootDir, filepath.FromSlash(rel))
	if !strings.ContainsAny(rel, "*?[{") {
		return literal, nil
	}
	if info, err := os.Stat(literal); err == nil && !info.IsDir() {
		return literal, nil
	}

	matches, err := doublestar.Glob(os.DirFS(rootDir), rel)
	if err != nil {
		return "", newError(ReasonNotFound, req, fmt.Errorf("glob %s: %w", rel, err))
	}
	var files []string
	for _, match := range matches {
		info, err := os.Stat(filepath.Join(rootDir, filepath.FromSlash(match)))
		if err != nil {
			return "", newError(ReasonIO, req, err)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	switch len(files) {
	case 0:
		return "", newError(ReasonNotFound, req, fmt.Errorf("no file under %s matches", rootDir))
	case 1:
		return filepath.Join(rootDir, filepath.FromSlash(files[0])), nil
	default:
		return "", newError(ReasonNotFound, req, fmt.Errorf("pattern is ambiguous, %d files match: %s", len(files), strings.Join(files, ", ")))
	}
}

func (f *Fetcher) step(detail string) {
	if f.Reporter != nil {
		f.Reporter.Step(detail)
	}
}
