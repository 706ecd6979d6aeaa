package diagnostic

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Severity represents the severity level of a diagnostic message
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Diagnostic is a single message about a checked manifest
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int
	Column   int
	File     string // optional, overrides the file passed to Format
	Item     string // optional, the function or declaration concerned
	Hint     string // optional suggestion
}

// Diagnostics manages a collection of diagnostic messages
type Diagnostics struct {
	items []Diagnostic
}

// New creates a new empty Diagnostics collection
func New() *Diagnostics {
	return &Diagnostics{items: make([]Diagnostic, 0)}
}

// Add appends d as is
func (d *Diagnostics) Add(diag Diagnostic) {
	d.items = append(d.items, diag)
}

// Merge appends every diagnostic of other
func (d *Diagnostics) Merge(other *Diagnostics) {
	d.items = append(d.items, other.items...)
}

// MergeInFile appends every diagnostic of other, attributing those that
// name no file to file
func (d *Diagnostics) MergeInFile(other *Diagnostics, file string) {
	for _, item := range other.items {
		if item.File == "" {
			item.File = file
		}
		d.items = append(d.items, item)
	}
}

// Errorf adds an error diagnostic with formatted message
func (d *Diagnostics) Errorf(line, col int, format string, args ...any) {
	d.Add(Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Line: line, Column: col})
}

// ItemErrorf adds an error about the named function or declaration
func (d *Diagnostics) ItemErrorf(item string, line, col int, format string, args ...any) {
	d.Add(Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Line: line, Column: col, Item: item})
}

// ErrorfInFile adds an error diagnostic with file path and formatted message
func (d *Diagnostics) ErrorfInFile(file string, line, col int, format string, args ...any) {
	d.Add(Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Line: line, Column: col, File: file})
}

// Warningf adds a warning diagnostic with formatted message
func (d *Diagnostics) Warningf(line, col int, format string, args ...any) {
	d.Add(Diagnostic{Severity: Warning, Message: fmt.Sprintf(format, args...), Line: line, Column: col})
}

// ErrorWithHint adds an error diagnostic with a hint
func (d *Diagnostics) ErrorWithHint(line, col int, msg, hint string) {
	d.Add(Diagnostic{Severity: Error, Message: msg, Line: line, Column: col, Hint: hint})
}

// HasErrors returns true if there are any error-level diagnostics
func (d *Diagnostics) HasErrors() bool {
	return d.ErrorCount() > 0
}

// Errors returns only the error-level diagnostics
func (d *Diagnostics) Errors() []Diagnostic {
	errs := make([]Diagnostic, 0)
	for _, item := range d.items {
		if item.Severity == Error {
			errs = append(errs, item)
		}
	}
	return errs
}

// All returns all diagnostics regardless of severity
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Count returns the total number of diagnostics
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// ErrorCount returns the number of error-level diagnostics
func (d *Diagnostics) ErrorCount() int {
	count := 0
	for _, item := range d.items {
		if item.Severity == Error {
			count++
		}
	}
	return count
}

// Sort orders diagnostics by file, then position. Diagnostics at the same
// position keep their relative order.
func (d *Diagnostics) Sort() {
	slices.SortStableFunc(d.items, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
		)
	})
}

// Format returns human-readable messages, one per line:
//
//	error[refine.yaml:3:10]: precondition might not hold (in fn inc)
//	  hint: add a requires clause
func (d *Diagnostics) Format(filename string) string {
	var builder strings.Builder
	for i, item := range d.items {
		if i > 0 {
			builder.WriteString("\n")
		}
		file := filename
		if item.File != "" {
			file = item.File
		}
		fmt.Fprintf(&builder, "%s[%s:%d:%d]: %s", item.Severity, file, item.Line, item.Column, item.Message)
		if item.Item != "" {
			fmt.Fprintf(&builder, " (in fn %s)", item.Item)
		}
		if item.Hint != "" {
			fmt.Fprintf(&builder, "\n  hint: %s", item.Hint)
		}
	}
	return builder.String()
}
