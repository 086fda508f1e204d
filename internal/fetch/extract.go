package fetch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

const listingPreview = 20

func (f *Fetcher) extract(req Request, archivePath string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", newError(ReasonArchive, req, err)
	}
	defer reader.Close()

	if reason, err := expand(&reader.Reader, req.ScratchDir); err != nil {
		return "", newError(reason, req, err)
	}
	f.step("successfully extracted archive")
	f.Log.Debug().Int("entries", len(reader.File)).Str("dir", req.ScratchDir).Msg("archive expanded")

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	root, ok := RootDir(names)
	if !ok {
		return "", newError(ReasonRoot, req, fmt.Errorf("top level contents: %s", strings.Join(topLevel(names), ", ")))
	}
	return root, nil
}

// RootDir returns the first path segment of the first listed entry. The
// first entry is assumed to be representative of the archive's single root
// folder; other entries are not checked.
func RootDir(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	first := names[0]
	var root string
	switch {
	case strings.Contains(first, "/"):
		root = strings.Split(first, "/")[0]
	case strings.Contains(first, `\`):
		root = strings.Split(first, `\`)[0]
	}
	if root == "" {
		return "", false
	}
	return root, true
}

func topLevel(names []string) []string {
	if len(names) > listingPreview {
		names = names[:listingPreview]
	}
	seen := map[string]bool{}
	var out []string
	for _, name := range names {
		head := strings.Split(strings.Split(name, "/")[0], `\`)[0]
		if seen[head] {
			continue
		}
		seen[head] = true
		out = append(out, head)
	}
	sort.Strings(out)
	return out
}

func expand(reader *zip.Reader, dest string) (Reason, error) {
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return ReasonIO, err
	}
	for _, file := range reader.File {
		name := strings.ReplaceAll(file.Name, `\`, "/")
		target := filepath.Clean(filepath.Join(destAbs, filepath.FromSlash(name)))
		if target != destAbs && !strings.HasPrefix(target, destAbs+string(filepath.Separator)) {
			return ReasonArchive, fmt.Errorf("entry %q escapes the extraction directory", file.Name)
		}
		if file.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return ReasonIO, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return ReasonIO, err
		}
		if reason, err := expandFile(file, target); err != nil {
			return reason, err
		}
	}
	return "", nil
}

var errWrite = errors.New("write failed")

func expandFile(file *zip.File, target string) (Reason, error) {
	src, err := file.Open()
	if err != nil {
		return ReasonArchive, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return ReasonIO, err
	}
	if _, err := io.Copy(writerFunc(func(p []byte) (int, error) {
		n, err := out.Write(p)
		if err != nil {
			return n, fmt.Errorf("%w: %v", errWrite, err)
		}
		return n, nil
	}), src); err != nil {
		_ = out.Close()
		if errors.Is(err, errWrite) {
			return ReasonIO, err
		}
		return ReasonArchive, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if err := out.Close(); err != nil {
		return ReasonIO, err
	}
	return "", nil
}

type writerFunc func(p []byte) (int, error)

func (fn writerFunc) Write(p []byte) (int, error) {
	return fn(p)
}
