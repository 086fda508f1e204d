package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const Comment = "This list was automatically generated. Descriptions and parameters are placeholders."

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type Document struct {
	SourceFileURL string `json:"source_file_url" yaml:"source_file_url"`
	Comment       string `json:"comment" yaml:"comment"`
	Tools         []Tool `json:"tools" yaml:"tools"`
}

type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

func Description(name string) string {
	return fmt.Sprintf("Description for %s - to be filled manually or by a more advanced parser.", name)
}

// Build keeps the order of names.
func Build(names []string, sourceURL string) Document {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, Tool{
			Name:        name,
			Description: Description(name),
			Parameters:  map[string]any{},
		})
	}
	return Document{
		SourceFileURL: sourceURL,
		Comment:       Comment,
		Tools:         tools,
	}
}

func DetectFormat(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown document format %q", value)
	}
}

// Encode writes JSON with two-space indentation and without escaping
// non-ASCII or HTML characters.
func Encode(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func Decode(data []byte, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func Write(path string, doc Document, format Format) ([]byte, error) {
	data, err := Encode(doc, format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return data, nil
}

func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Decode(data, DetectFormat(path))
}

func (d Document) Names() []string {
	names := make([]string, 0, len(d.Tools))
	for _, tool := range d.Tools {
		names = append(names, tool.Name)
	}
	return names
}
