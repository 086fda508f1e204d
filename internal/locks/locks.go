package locks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// LockFile records the last successful scan of one target.
type LockFile struct {
	Target     string `json:"target"`
	ArchiveURL string `json:"archive_url"`
	Path       string `json:"path"`
	SourceHash string `json:"source_hash"`
	NamesHash  string `json:"names_hash"`
	Output     string `json:"output"`
	OutputHash string `json:"output_hash"`
	ToolCount  int    `json:"tool_count"`
	UpdatedAt  string `json:"updated_at"`
}

func Dir(root string) string {
	return filepath.Join(root, ".toolscan", "locks")
}

func LockPath(root, target string) string {
	return filepath.Join(Dir(root), target+".lock")
}

func Read(root, target string) (*LockFile, error) {
	return ReadFile(LockPath(root, target))
}

// ReadFile returns nil without error when path does not exist.
func ReadFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lock LockFile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func Write(root string, lock LockFile) error {
	lock.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	path := LockPath(root, lock.Target)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
