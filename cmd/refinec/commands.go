package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/driver"
	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/logging"
	"github.com/lhaig/refine/internal/metrics"
)

// run holds what every subcommand sets up before touching a manifest
type run struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.Collectors
	driver  *driver.Driver
}

func setup() (*run, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	r := &run{cfg: cfg}
	r.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "refinec",
		JSON:    cfg.Log.JSON,
	})
	opts := []driver.Option{}
	if cfg.Metrics.Enabled {
		r.metrics = metrics.New()
		opts = append(opts, driver.WithMetrics(r.metrics))
	}
	r.driver = driver.New(cfg, r.logger.Slog(), opts...)
	return r, nil
}

// finish writes the metrics textfile and closes the log file
func (r *run) finish() {
	if r.metrics != nil {
		if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
			r.logger.Warn("could not write metrics", "path", r.cfg.Metrics.Textfile, "error", err)
		}
	}
	_ = r.logger.Close()
}

// reportDiagnostics prints diag to stderr and reports whether it held errors
func reportDiagnostics(diag *diagnostic.Diagnostics, entry string) bool {
	if diag == nil || diag.Count() == 0 {
		return false
	}
	fmt.Fprintln(os.Stderr, diag.Format(entry))
	return diag.HasErrors()
}

func runCheck(cmd *cobra.Command, args []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	defer r.finish()

	if !fixpoint.Available() {
		r.logger.Warn("fixpoint not found on PATH; checks will fail")
	}
	res, err := r.driver.Check(cmd.Context(), args[0], fnNames...)
	if err != nil {
		if res != nil {
			reportDiagnostics(res.Diagnostics, args[0])
		}
		return err
	}
	if err := driver.WriteResult(cmd.OutOrStdout(), res, format); err != nil {
		return err
	}
	if !res.OK() {
		return exitCode(exitFailed)
	}
	return nil
}

func runEmit(cmd *cobra.Command, args []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	defer r.finish()

	tasks, diag, err := r.driver.Emit(args[0], fnNames...)
	failed := reportDiagnostics(diag, args[0])
	if err != nil {
		return err
	}
	if failed {
		return exitCode(exitFailed)
	}
	out := cmd.OutOrStdout()
	for _, t := range tasks {
		fmt.Fprintf(out, "// %s\n%s\n", t.Fn, t.Text)
	}
	return nil
}

func runQualifiers(cmd *cobra.Command, args []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	defer r.finish()

	quals, diag, err := r.driver.Qualifiers(args[0], fnNames...)
	failed := reportDiagnostics(diag, args[0])
	if err != nil {
		return err
	}
	if failed {
		return exitCode(exitFailed)
	}
	out := cmd.OutOrStdout()
	for _, fq := range quals {
		fmt.Fprintf(out, "%s:\n", fq.Fn)
		if len(fq.Text) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, q := range fq.Text {
			fmt.Fprintf(out, "  %s\n", q)
		}
	}
	return nil
}

func runWF(cmd *cobra.Command, args []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	defer r.finish()

	diag, err := r.driver.WF(args[0])
	failed := reportDiagnostics(diag, args[0])
	if err != nil {
		return err
	}
	if failed {
		return exitCode(exitFailed)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
	return nil
}
