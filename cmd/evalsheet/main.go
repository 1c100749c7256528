// Package main provides the CLI entry point for evalsheet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukaji3/evalsheet-go/internal/api"
	"github.com/ukaji3/evalsheet-go/internal/config"
	"github.com/ukaji3/evalsheet-go/internal/mcptool"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

var version = "dev"

// cliFlags holds flag values for one command tree.
type cliFlags struct {
	envFile    string
	logLevel   string
	backend    string
	password   string
	layout     string
	vbaProject string

	format string
	noForm bool
	strict bool
	roster string

	addr     string
	template string
	tempDir  string

	output string
	pretty bool

	cfg config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "evalsheet <input.json> <template> <output>",
		Short: "Generate protected evaluation workbooks from grading data",
		Long: `evalsheet fills an evaluation template with a group's grading data
(group, subject, teacher, weightings and roster), adds the weighting form to
macro-enabled output and protects the sheets.`,
		Args:              cobra.ExactArgs(3),
		SilenceUsage:      true,
		PersistentPreRunE: f.loadConfig,
		RunE:              f.runGenerate,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", "", "Environment file to load (default: .env if present)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.backend, "backend", "", "Workbook backend: auto, excelize, ole")
	pf.StringVar(&f.password, "password", "", "Sheet protection password")
	pf.StringVar(&f.layout, "layout", "", "YAML file overriding template cell positions")
	pf.StringVar(&f.vbaProject, "vba-project", "", "Precompiled vbaProject.bin for the excelize backend")

	rootCmd.Flags().StringVar(&f.format, "format", "", "Output format: xlsx, xlsm (default: from output extension)")
	rootCmd.Flags().BoolVar(&f.noForm, "no-form", false, "Do not add the weighting form")
	rootCmd.Flags().BoolVar(&f.strict, "strict", false, "Validate grading data before generating")
	rootCmd.Flags().StringVar(&f.roster, "roster", "", "Roster workbook replacing the input's students (id in column C, name in column D)")

	rootCmd.AddCommand(newServeCmd(f), newMCPCmd(f), newInspectCmd(f))
	return rootCmd
}

func newServeCmd(f *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/generar over HTTP",
		Args:  cobra.NoArgs,
		RunE:  f.runServe,
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (default: :8080)")
	cmd.Flags().StringVar(&f.template, "template", "", "Template workbook (default: templates/Template.xlsx)")
	cmd.Flags().StringVar(&f.tempDir, "temp-dir", "", "Directory for per-request files")
	return cmd
}

func newMCPCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generate_evaluation tool over MCP stdio",
		Args:  cobra.NoArgs,
		RunE:  f.runMCP,
	}
}

func newInspectCmd(f *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <workbook>",
		Short: "Read the grading data back out of a generated workbook as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  f.runInspect,
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

// loadConfig reads the environment and lets explicit flags win.
func (f *cliFlags) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}

	overrides := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"log-level", f.logLevel, &cfg.LogLevel},
		{"backend", f.backend, &cfg.Backend},
		{"password", f.password, &cfg.Password},
		{"layout", f.layout, &cfg.Layout},
		{"vba-project", f.vbaProject, &cfg.VBAProject},
		{"addr", f.addr, &cfg.Addr},
		{"template", f.template, &cfg.Template},
		{"temp-dir", f.tempDir, &cfg.TempDir},
	}
	for _, o := range overrides {
		if flag := cmd.Flags().Lookup(o.flag); flag != nil && flag.Changed {
			*o.dst = o.value
		}
	}

	if err := cfg.ApplyLogLevel(); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	f.cfg = cfg
	return nil
}

func (f *cliFlags) runGenerate(cmd *cobra.Command, args []string) error {
	inputPath, templatePath, outputPath := args[0], args[1], args[2]

	format, err := workbook.ParseFormat(f.format)
	if err != nil {
		return err
	}
	opts, err := f.cfg.Options()
	if err != nil {
		return err
	}
	opts.Format = format
	opts.InjectForm = !f.noForm
	opts.Strict = f.strict
	opts.Roster = f.roster

	if err := evalsheet.Generate(cmd.Context(), inputPath, templatePath, outputPath, opts); err != nil {
		return err
	}

	if resolved, err := workbook.FormatFromPath(outputPath, format); err == nil {
		outputPath = evalsheet.OutputPath(outputPath, resolved)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated %s\n", outputPath)
	return nil
}

func (f *cliFlags) runInspect(cmd *cobra.Command, args []string) error {
	opts, err := f.cfg.Options()
	if err != nil {
		return err
	}

	ev, err := evalsheet.Extract(args[0], opts.Layout)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	var jsonData []byte
	if f.pretty {
		jsonData, err = json.MarshalIndent(ev, "", "  ")
	} else {
		jsonData, err = json.Marshal(ev)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}

	if f.output != "" {
		if err := os.WriteFile(f.output, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
	return nil
}

func (f *cliFlags) runServe(cmd *cobra.Command, args []string) error {
	opts, err := f.cfg.Options()
	if err != nil {
		return err
	}
	if _, err := os.Stat(f.cfg.Template); err != nil {
		return fmt.Errorf("%w: %s", evalsheet.ErrTemplateNotFound, f.cfg.Template)
	}

	s := api.NewServer(f.cfg.Template, f.cfg.TempDir, opts)
	srv := &http.Server{
		Addr:              f.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     f.cfg.Addr,
			"template": f.cfg.Template,
			"backend":  opts.Backend,
		}).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (f *cliFlags) runMCP(cmd *cobra.Command, args []string) error {
	opts, err := f.cfg.Options()
	if err != nil {
		return err
	}
	return server.ServeStdio(mcptool.NewServer(version, opts))
}
