package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/hostguard/internal/approval"
)

// format resolves --output. "auto" means a table on a terminal and JSON
// everywhere else, so pipes and scripts get machine-readable output.
func format() (string, error) {
	switch outputFormat {
	case "", "auto":
		if approval.IsTerminalOutput() {
			return "table", nil
		}
		return "json", nil
	case "table", "json", "yaml":
		return outputFormat, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want auto, table, json or yaml)", outputFormat)
	}
}

// render writes v in the selected format. table draws the human form.
func render(w io.Writer, v any, table func(w io.Writer)) error {
	f, err := format()
	if err != nil {
		return err
	}
	switch f {
	case "json", "yaml":
		return renderAs(w, f, v)
	default:
		table(w)
	}
	return nil
}

// renderAs writes v as JSON or YAML, regardless of --output.
func renderAs(w io.Writer, f string, v any) error {
	switch f {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", f)
	}
	return nil
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.Header(header...)
	return t
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
