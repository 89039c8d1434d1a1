// Package output renders command results as YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DefaultFormat is the default output format.
var DefaultFormat Format = FormatYAML

// globalFormat is set by the root command's --output flag.
var globalFormat = DefaultFormat

// SetFormat sets the global output format.
func SetFormat(format string) error {
	switch Format(format) {
	case FormatJSON, FormatYAML:
		globalFormat = Format(format)
		return nil
	case "":
		globalFormat = DefaultFormat
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}

// GetFormat returns the current global output format.
func GetFormat() Format {
	return globalFormat
}

// Print writes data to stdout in the configured format.
func Print(data any) error {
	return To(os.Stdout, globalFormat, data)
}

// To writes data to the given writer in the specified format.
//
// YAML is produced from the JSON encoding so that custom JSON marshalers,
// json tags and field order carry over unchanged.
func To(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return fmt.Errorf("converting to yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(&node)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// blockStyle drops the flow and quoting styles the JSON source implies.
// The encoder still quotes strings that would read back as another type.
// Empty collections stay in flow style so they print as [] and {}.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	if (n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode) && len(n.Content) == 0 {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
