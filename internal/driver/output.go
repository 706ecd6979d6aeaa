package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lhaig/refine/internal/verify"
)

// Formats lists the output formats WriteResult accepts
var Formats = []string{"text", "json"}

// writer renders a result in one output format
type writer func(w io.Writer, res *Result) error

// getWriter returns the writer for the given format
func getWriter(format string) (writer, error) {
	switch format {
	case "", "text":
		return writeText, nil
	case "json":
		return writeJSON, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (expected one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteResult writes res to w in the given format
func WriteResult(w io.Writer, res *Result, format string) error {
	write, err := getWriter(format)
	if err != nil {
		return err
	}
	return write(w, res)
}

func writeText(w io.Writer, res *Result) error {
	var sb strings.Builder
	if res.Diagnostics.Count() > 0 {
		sb.WriteString(res.Diagnostics.Format(res.Entry))
		sb.WriteString("\n")
	}
	if len(res.Verdicts) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(verify.FormatReport(res.Verdicts))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

type jsonDiagnostic struct {
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Fn       string `json:"fn,omitempty"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
}

type jsonVerdict struct {
	Fn          string   `json:"fn"`
	Status      string   `json:"status"`
	Obligations int      `json:"obligations"`
	KVars       int      `json:"kvars"`
	Skipped     bool     `json:"skipped,omitempty"`
	Failures    []string `json:"failures,omitempty"`
}

type jsonResult struct {
	OK          bool             `json:"ok"`
	Status      string           `json:"status"`
	Functions   []jsonVerdict    `json:"functions"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

func writeJSON(w io.Writer, res *Result) error {
	out := jsonResult{
		OK:          res.OK(),
		Status:      verify.Worst(res.Verdicts).String(),
		Functions:   make([]jsonVerdict, 0, len(res.Verdicts)),
		Diagnostics: make([]jsonDiagnostic, 0, res.Diagnostics.Count()),
	}
	for _, v := range res.Verdicts {
		jv := jsonVerdict{
			Fn:          v.Fn,
			Status:      v.Status.String(),
			Obligations: v.Obligations,
			KVars:       v.KVars,
			Skipped:     v.Skipped,
		}
		for _, t := range v.Failures {
			jv.Failures = append(jv.Failures, t.String())
		}
		out.Functions = append(out.Functions, jv)
	}
	for _, d := range res.Diagnostics.All() {
		file := d.File
		if file == "" {
			file = res.Entry
		}
		out.Diagnostics = append(out.Diagnostics, jsonDiagnostic{
			Severity: d.Severity.String(),
			File:     file,
			Line:     d.Line,
			Column:   d.Column,
			Fn:       d.Item,
			Message:  d.Message,
			Hint:     d.Hint,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
