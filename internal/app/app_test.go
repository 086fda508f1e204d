package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"github.com/tuist/toolscan/internal/document"
	"github.com/tuist/toolscan/internal/locks"
	"github.com/tuist/toolscan/internal/preset"
)

const clineSource = `
switch (block.name) {
	case "read_file":
	case "write_to_file":
	case "thinking":
	case "default":
}
const config = { tools: ["execute_command", "read_file"] }
registerTool("browser_action", handler)
`

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func serveArchive(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeProject(t *testing.T, root, url, path string) {
	t.Helper()
	contents := `
[[target]]
name = "ClineTools"
preset = "cline"
archive_url = "` + url + `/main.zip"
path = "` + path + `"
`
	if err := os.WriteFile(filepath.Join(root, "toolscan.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write toolscan.toml: %v", err)
	}
}

type recordingReporter struct {
	noopReporter
	failures []string
	statuses map[string]StatusKind
	tools    map[string][]string
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{
		statuses: map[string]StatusKind{},
		tools:    map[string][]string{},
	}
}

func (r *recordingReporter) Failure(target string, err error) {
	r.failures = append(r.failures, target+": "+err.Error())
}

func (r *recordingReporter) Tools(target string, names []string) {
	r.tools[target] = names
}

func (r *recordingReporter) Status(kind StatusKind, target, output string) {
	r.statuses[target] = kind
}

func TestScanWritesSortedUniqueTools(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	reporter := newRecordingReporter()
	if err := Scan(context.Background(), root, ScanOptions{Reporter: reporter}); err != nil {
		t.Fatalf("scan: %v (failures: %v)", err, reporter.failures)
	}

	doc, err := document.Read(filepath.Join(root, "cline_available_tools.json"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	expected := []string{"browser_action", "execute_command", "read_file", "thinking", "write_to_file"}
	if !reflect.DeepEqual(doc.Names(), expected) {
		t.Fatalf("expected %v, got %v", expected, doc.Names())
	}
	if doc.SourceFileURL != server.URL+"/main.zip" {
		t.Fatalf("unexpected source url %q", doc.SourceFileURL)
	}

	lock, err := locks.Read(root, "ClineTools")
	if err != nil || lock == nil {
		t.Fatalf("expected lockfile, got %v %v", lock, err)
	}
	if lock.ToolCount != len(expected) || lock.Output != "cline_available_tools.json" {
		t.Fatalf("unexpected lockfile %#v", lock)
	}

	if _, err := os.Stat(filepath.Join(root, "temp_repo_extract_ClineTools", "downloaded_repo_cline.zip")); err != nil {
		t.Fatalf("expected archive to stay in scratch dir: %v", err)
	}

	if err := Status(root, StatusOptions{Reporter: reporter}); err != nil {
		t.Fatalf("status after scan: %v", err)
	}
	if reporter.statuses["ClineTools"] != StatusOK {
		t.Fatalf("expected ok status, got %q", reporter.statuses["ClineTools"])
	}
	if err := Check(root, CheckOptions{}); err != nil {
		t.Fatalf("check after scan: %v", err)
	}
}

func TestScanMissingTargetFileSkipsDocument(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/README.md": "hello",
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	reporter := newRecordingReporter()
	err := Scan(context.Background(), root, ScanOptions{Reporter: reporter})
	if err == nil {
		t.Fatalf("expected scan to report a failed target")
	}
	if len(reporter.failures) != 1 || !strings.Contains(reporter.failures[0], "failed to fetch source code") {
		t.Fatalf("unexpected failures %v", reporter.failures)
	}
	if _, err := os.Stat(filepath.Join(root, "cline_available_tools.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no document, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "temp_repo_extract_ClineTools")); err != nil {
		t.Fatalf("expected scratch dir to remain: %v", err)
	}
}

func TestScanEmptyHarvestWritesNothing(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": "export const nothing = 1\n",
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	reporter := newRecordingReporter()
	if err := Scan(context.Background(), root, ScanOptions{Reporter: reporter}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if names, ok := reporter.tools["ClineTools"]; !ok || len(names) != 0 {
		t.Fatalf("expected empty tool report, got %v", names)
	}
	if _, err := os.Stat(filepath.Join(root, "cline_available_tools.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no document, got %v", err)
	}
}

func TestScanDryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	if err := Scan(context.Background(), root, ScanOptions{DryRun: true}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cline_available_tools.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no document on dry run, got %v", err)
	}
	if lock, _ := locks.Read(root, "ClineTools"); lock != nil {
		t.Fatalf("expected no lockfile on dry run")
	}
}

func TestStatusDetectsModifiedAndMissing(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	reporter := newRecordingReporter()
	if err := Status(root, StatusOptions{Reporter: reporter}); err == nil {
		t.Fatalf("expected status to fail before scan")
	}
	if reporter.statuses["ClineTools"] != StatusMissing {
		t.Fatalf("expected missing, got %q", reporter.statuses["ClineTools"])
	}

	if err := Scan(context.Background(), root, ScanOptions{}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	output := filepath.Join(root, "cline_available_tools.json")
	if err := os.WriteFile(output, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("edit output: %v", err)
	}
	if err := Status(root, StatusOptions{Reporter: reporter}); err == nil {
		t.Fatalf("expected status to fail after edit")
	}
	if reporter.statuses["ClineTools"] != StatusModified {
		t.Fatalf("expected modified, got %q", reporter.statuses["ClineTools"])
	}
}

func TestCleanRemovesScratchOutputsAndLocks(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")
	if err := Scan(context.Background(), root, ScanOptions{}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if err := Clean(root, CleanOptions{ScratchOnly: true}); err != nil {
		t.Fatalf("clean scratch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "temp_repo_extract_ClineTools")); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cline_available_tools.json")); err != nil {
		t.Fatalf("expected output kept with scratch-only: %v", err)
	}

	if err := Clean(root, CleanOptions{}); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cline_available_tools.json")); !os.IsNotExist(err) {
		t.Fatalf("expected output removed, got %v", err)
	}
	if lock, _ := locks.Read(root, "ClineTools"); lock != nil {
		t.Fatalf("expected lockfile removed")
	}
}

func TestCleanOrphans(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	orphanOutput := filepath.Join(root, "old_available_tools.json")
	if err := os.WriteFile(orphanOutput, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write orphan output: %v", err)
	}
	if err := locks.Write(root, locks.LockFile{Target: "Old", Output: "old_available_tools.json"}); err != nil {
		t.Fatalf("write orphan lock: %v", err)
	}

	if err := Clean(root, CleanOptions{Orphans: true}); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(orphanOutput); !os.IsNotExist(err) {
		t.Fatalf("expected orphan output removed, got %v", err)
	}
	if lock, _ := locks.Read(root, "Old"); lock != nil {
		t.Fatalf("expected orphan lock removed")
	}
}

func TestHarvestFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "tools.ts")
	if err := os.WriteFile(source, []byte(clineSource), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	out := filepath.Join(dir, "out.yaml")

	names, err := HarvestFile(source, HarvestOptions{Out: out, SourceURL: "https://example.com/a.zip"})
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if len(names) != 5 {
		t.Fatalf("expected 5 names, got %v", names)
	}
	doc, err := document.Read(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !reflect.DeepEqual(doc.Names(), names) {
		t.Fatalf("expected %v, got %v", names, doc.Names())
	}

	if _, err := HarvestFile(source, HarvestOptions{Preset: "nope"}); err == nil {
		t.Fatalf("expected unknown preset to fail")
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "toolscan.toml"), nil, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := FindRoot(nested); got != root {
		t.Fatalf("expected %q, got %q", root, got)
	}
}

func TestWriteScaffold(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("node_modules"), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}
	picker := newPresetPicker(preset.All())
	if err := writeScaffold(root, picker.chosen(), nil); err != nil {
		t.Fatalf("scaffold: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "toolscan.toml"))
	if err != nil {
		t.Fatalf("read toolscan.toml: %v", err)
	}
	if !strings.Contains(string(data), `preset = "cline"`) || !strings.Contains(string(data), `preset = "roo"`) {
		t.Fatalf("expected both presets, got:\n%s", data)
	}

	ignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if string(ignore) != "node_modules\n/temp_repo_extract_*\n" {
		t.Fatalf("unexpected .gitignore %q", ignore)
	}

	if err := Scan(context.Background(), root, ScanOptions{Targets: []string{"missing"}}); err == nil {
		t.Fatalf("expected unmatched target filter to fail")
	}
}

func TestScanLogsRuleContributionsAtDebug(t *testing.T) {
	root := t.TempDir()
	server := serveArchive(t, buildArchive(t, map[string]string{
		"cline-main/src/core/task/index.ts": clineSource,
	}))
	writeProject(t, root, server.URL, "src/core/task/index.ts")

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	if err := Scan(context.Background(), root, ScanOptions{Logger: &logger, DryRun: true}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"harvested"`) || !strings.Contains(out, `"registration-call":1`) {
		t.Fatalf("expected harvest debug line, got:\n%s", out)
	}

	buf.Reset()
	quiet := zerolog.New(&buf).Level(zerolog.InfoLevel)
	if err := Scan(context.Background(), root, ScanOptions{Logger: &quiet, DryRun: true}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no debug output at info level, got:\n%s", buf.String())
	}
}

func TestCleanSkipsOutputOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "tools.json")
	if err := os.WriteFile(outside, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write outside output: %v", err)
	}
	contents := `
[[target]]
name = "ClineTools"
preset = "cline"
output = "` + filepath.ToSlash(outside) + `"

[[target]]
name = "RooCodeTools"
preset = "roo"
`
	if err := os.WriteFile(filepath.Join(root, "toolscan.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write toolscan.toml: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "temp_repo_extract_ClineTools"), 0o755); err != nil {
		t.Fatalf("mkdir scratch: %v", err)
	}
	rooOutput := filepath.Join(root, "roo_available_tools.json")
	if err := os.WriteFile(rooOutput, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write roo output: %v", err)
	}

	if err := Clean(root, CleanOptions{}); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("expected output outside root kept: %v", err)
	}
	if _, err := os.Stat(rooOutput); !os.IsNotExist(err) {
		t.Fatalf("expected later target output removed, got %v", err)
	}
}
