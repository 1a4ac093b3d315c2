package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
	}
}

// Table is tabular command output. Text and CSV render it as rows; JSON
// renders Records when set, so machine consumers get typed fields.
type Table struct {
	Headers []string
	Rows    [][]string
	Records any
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data *Table) error
}

// TextFormatter aligns columns with tabs.
type TextFormatter struct{}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data *Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(data.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(data.Headers, "\t"))
	}
	for _, row := range data.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data *Table) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	if data.Records != nil {
		return encoder.Encode(data.Records)
	}

	records := make([]map[string]string, 0, len(data.Rows))
	for _, row := range data.Rows {
		rec := make(map[string]string, len(row))
		for i, cell := range row {
			if i < len(data.Headers) {
				rec[data.Headers[i]] = cell
			}
		}
		records = append(records, rec)
	}
	return encoder.Encode(records)
}

// CSVFormatter formats output as CSV.
type CSVFormatter struct{}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data *Table) error {
	csvWriter := csv.NewWriter(w)
	if len(data.Headers) > 0 {
		if err := csvWriter.Write(data.Headers); err != nil {
			return err
		}
	}
	if err := csvWriter.WriteAll(data.Rows); err != nil {
		return err
	}
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
