package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK     = 0
	exitFailed = 1 // unsafe functions or malformed manifests
	exitError  = 2 // the checker itself could not run
)

// exitCode carries a nonzero status out of a command that already reported
// its findings
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

var (
	configPath string
	logLevel   string
	fnNames    []string
	format     string
)

const long = `refinec checks functions against refinement type signatures.

A manifest declares datatypes, constants, uninterpreted functions,
qualifiers and function signatures written in the refinement notation,
plus straight-line bodies for the functions to check. Each checked
function becomes one Horn constraint task for the fixpoint solver, which
must be on PATH.

Examples:
  refinec check vec.yaml                 Check every function
  refinec check --fn push vec.yaml       Check one function
  refinec check --format json vec.yaml   Machine-readable verdicts
  refinec emit vec.yaml                  Print solver tasks without solving
  refinec wf vec.yaml                    Only check well-formedness`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "refinec",
		Short:         "Refinement type checker driven by YAML manifests",
		Long:          long,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a refinec.yaml config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	checkCmd := &cobra.Command{
		Use:   "check <manifest.yaml>",
		Short: "Check functions and report every obligation that might fail",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringSliceVar(&fnNames, "fn", nil, "check only the named functions")
	checkCmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")

	emitCmd := &cobra.Command{
		Use:   "emit <manifest.yaml>",
		Short: "Print the fixpoint task of each function without solving",
		Args:  cobra.ExactArgs(1),
		RunE:  runEmit,
	}
	emitCmd.Flags().StringSliceVar(&fnNames, "fn", nil, "emit only the named functions")

	qualCmd := &cobra.Command{
		Use:   "qualifiers <manifest.yaml>",
		Short: "List the qualifiers derived from each signature",
		Args:  cobra.ExactArgs(1),
		RunE:  runQualifiers,
	}
	qualCmd.Flags().StringSliceVar(&fnNames, "fn", nil, "only the named functions")

	wfCmd := &cobra.Command{
		Use:   "wf <manifest.yaml>",
		Short: "Parse and sort-check every declaration",
		Args:  cobra.ExactArgs(1),
		RunE:  runWF,
	}

	root.AddCommand(checkCmd, emitCmd, qualCmd, wfCmd)
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		os.Exit(exitOK)
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(exitError)
}
