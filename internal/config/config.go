package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultScratchPrefix = "temp_repo_extract"

// FileNames lists the accepted config file names in lookup order.
var FileNames = []string{"toolscan.toml", "toolscan.yaml", "toolscan.yml"}

type File struct {
	Path   string
	Dir    string
	Config Config
}

type Config struct {
	ScratchPrefix  string   `toml:"scratch_prefix" yaml:"scratch_prefix"`
	TimeoutSeconds int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Targets        []Target `toml:"target" yaml:"target"`
}

type Target struct {
	Name        string       `toml:"name" yaml:"name"`
	Preset      string       `toml:"preset" yaml:"preset"`
	ArchiveURL  string       `toml:"archive_url" yaml:"archive_url"`
	Path        string       `toml:"path" yaml:"path"`
	ArchiveName string       `toml:"archive_name" yaml:"archive_name"`
	Output      string       `toml:"output" yaml:"output"`
	Format      string       `toml:"format" yaml:"format"`
	Rules       []RuleConfig `toml:"rule" yaml:"rule"`
}

type RuleConfig struct {
	Kind   string `toml:"kind" yaml:"kind"`
	Block  string `toml:"block" yaml:"block"`
	Type   string `toml:"type" yaml:"type"`
	Filter *bool  `toml:"filter" yaml:"filter"`
}

// FilterEnabled defaults to true when unset.
func (r RuleConfig) FilterEnabled() bool {
	if r.Filter == nil {
		return true
	}
	return *r.Filter
}

// Find returns the first config file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load parses the config in root. ok is false when root has none.
func Load(root string) (file File, ok bool, err error) {
	path, found := Find(root)
	if !found {
		return File{}, false, nil
	}
	file, err = ParseFile(path)
	if err != nil {
		return File{}, false, err
	}
	return file, true, nil
}

func ParseFile(path string) (File, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	cfg, err := Parse(contents, filepath.Ext(path))
	if err != nil {
		return File{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:   absPath,
		Dir:    filepath.Dir(absPath),
		Config: cfg,
	}, nil
}

// Parse decodes contents as TOML, or YAML when ext is .yaml or .yml.
func Parse(contents []byte, ext string) (Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return Config{}, err
		}
	case ".toml", "":
		if err := toml.Unmarshal(contents, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, errors.New("unsupported config extension " + ext)
	}
	return ApplyDefaults(cfg), nil
}

func ApplyDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.ScratchPrefix) == "" {
		cfg.ScratchPrefix = DefaultScratchPrefix
	}
	if cfg.TimeoutSeconds < 0 {
		cfg.TimeoutSeconds = 0
	}
	return cfg
}
