package app

import (
	"os"
	"path/filepath"

	"github.com/tuist/toolscan/internal/config"
)

// FindRoot walks up from start to the nearest directory holding a config
// file or a .git entry. It returns start when neither is found.
func FindRoot(start string) string {
	dir := filepath.Clean(start)
	for {
		if _, ok := config.Find(dir); ok {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
