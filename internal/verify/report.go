package verify

import (
	"fmt"
	"strings"

	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/fixpoint"
)

// Report turns every failed obligation into an error diagnostic at the
// obligation's source position
func Report(verdicts []*Verdict) *diagnostic.Diagnostics {
	d := diagnostic.New()
	for _, v := range verdicts {
		for _, t := range v.Failures {
			d.Add(diagnostic.Diagnostic{
				Severity: diagnostic.Error,
				Message:  t.Reason.message(),
				Line:     t.Line,
				Column:   t.Column,
				Item:     v.Fn,
			})
		}
	}
	return d
}

// statusRank orders verdicts: safe < unsafe < crash
func statusRank(s fixpoint.Status) int {
	switch s {
	case fixpoint.StatusSafe:
		return 0
	case fixpoint.StatusUnsafe:
		return 1
	default:
		return 2
	}
}

// Worst returns the worst status among verdicts, Safe when there are none
func Worst(verdicts []*Verdict) fixpoint.Status {
	worst := fixpoint.StatusSafe
	for _, v := range verdicts {
		if statusRank(v.Status) > statusRank(worst) {
			worst = v.Status
		}
	}
	return worst
}

// FormatReport produces human-readable output for a checking run
func FormatReport(verdicts []*Verdict) string {
	if len(verdicts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Refinement Check Report\n")
	sb.WriteString("=======================\n\n")

	safe := 0
	for _, v := range verdicts {
		status := strings.ToUpper(v.Status.String())
		if v.Skipped {
			status += " (trivial)"
		}
		fmt.Fprintf(&sb, "  %-40s %s\n", v.Fn, status)
		for _, t := range v.Failures {
			fmt.Fprintf(&sb, "    %d:%d %s\n", t.Line, t.Column, t.Reason.message())
		}
		if v.Safe() {
			safe++
		}
	}

	sb.WriteString("\n")
	if safe == len(verdicts) {
		fmt.Fprintf(&sb, "Status: all %d functions safe\n", len(verdicts))
	} else {
		fmt.Fprintf(&sb, "Status: %d of %d functions safe\n", safe, len(verdicts))
	}
	return sb.String()
}
