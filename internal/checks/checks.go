package checks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tuist/toolscan/internal/document"
)

type Checker struct{}

type Options struct {
	SourceURL string
	Reporter  ToolReporter
}

type ToolError struct {
	Tool string
	Err  error
}

func (e ToolError) Error() string {
	return fmt.Sprintf("%s check failed: %v", e.Tool, e.Err)
}

func (e ToolError) Unwrap() error {
	return e.Err
}

type ToolReporter interface {
	Tool(name, detail string)
}

type rawDocument struct {
	SourceFileURL string    `json:"source_file_url" yaml:"source_file_url"`
	Comment       string    `json:"comment" yaml:"comment"`
	Tools         []rawTool `json:"tools" yaml:"tools"`
}

type rawTool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Parameters  any    `json:"parameters" yaml:"parameters"`
}

// ValidateFile reads the document at path and validates it.
func (c Checker) ValidateFile(path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.Validate(document.DetectFormat(path), data, opts)
}

func (c Checker) Validate(format document.Format, data []byte, opts Options) error {
	if opts.Reporter != nil {
		opts.Reporter.Tool("syntax", "parse "+formatLabel(format))
	}
	if err := validateSyntax(format, data); err != nil {
		return ToolError{Tool: "syntax", Err: err}
	}

	var doc rawDocument
	if err := decode(format, data, &doc); err != nil {
		return ToolError{Tool: "schema", Err: err}
	}
	if opts.Reporter != nil {
		opts.Reporter.Tool("schema", "verify document fields")
	}
	if err := validateSchema(doc, opts.SourceURL); err != nil {
		return ToolError{Tool: "schema", Err: err}
	}

	if opts.Reporter != nil {
		opts.Reporter.Tool("order", "verify tool names are unique and sorted")
	}
	if err := validateOrder(doc.Tools); err != nil {
		return ToolError{Tool: "order", Err: err}
	}
	return nil
}

func validateSyntax(format document.Format, data []byte) error {
	var v any
	switch format {
	case document.FormatYAML:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("yaml invalid: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("json invalid: %w", err)
		}
	}
	if _, ok := v.(map[string]any); !ok {
		return errors.New("document must be an object")
	}
	return nil
}

func decode(format document.Format, data []byte, out *rawDocument) error {
	if format == document.FormatYAML {
		return yaml.Unmarshal(data, out)
	}
	return json.Unmarshal(data, out)
}

func validateSchema(doc rawDocument, sourceURL string) error {
	if strings.TrimSpace(doc.SourceFileURL) == "" {
		return errors.New("source_file_url is empty")
	}
	if sourceURL != "" && doc.SourceFileURL != sourceURL {
		return fmt.Errorf("source_file_url %q does not match configured %q", doc.SourceFileURL, sourceURL)
	}
	if len(doc.Tools) == 0 {
		return errors.New("tools is empty")
	}
	for i, tool := range doc.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return fmt.Errorf("tools[%d] has no name", i)
		}
		if _, ok := tool.Parameters.(map[string]any); !ok {
			return fmt.Errorf("tools[%d] (%s) parameters must be an object", i, tool.Name)
		}
	}
	return nil
}

func validateOrder(tools []rawTool) error {
	names := make([]string, 0, len(tools))
	seen := map[string]bool{}
	for _, tool := range tools {
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool name %q", tool.Name)
		}
		seen[tool.Name] = true
		names = append(names, tool.Name)
	}
	if !sort.StringsAreSorted(names) {
		return errors.New("tool names are not sorted")
	}
	return nil
}

func formatLabel(format document.Format) string {
	switch format {
	case document.FormatYAML:
		return "YAML"
	default:
		return "JSON"
	}
}
