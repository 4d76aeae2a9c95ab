package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gonkalabs/lethe-go/internal/config"
	"github.com/gonkalabs/lethe-go/pkg/lethe"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Cfg
	client *lethe.Client

	// persistent flags
	url    string
	format string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "lethe",
		Short: "Client for the Lethe PII anonymization service",
		Long: `Send text or files to a running Lethe service and print the anonymized result.

The service URL comes from --url, LETHE_URL or defaults to ` + lethe.DefaultBaseURL + `.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&a.url, "url", "", "Lethe service base URL (overrides LETHE_URL)")
	root.PersistentFlags().StringVar(&a.format, "format", "", "output format: json or yaml (overrides LETHE_OUTPUT_FORMAT)")

	root.AddCommand(
		newAnonymizeCmd(a),
		newBatchCmd(a),
		newSynthesizeCmd(a),
		newHealthCmd(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cmd.Flags().Changed("url") {
		cfg.BaseURL = a.url
	}
	if cmd.Flags().Changed("format") {
		format := strings.ToLower(strings.TrimSpace(a.format))
		if err := config.ValidateFormat(format); err != nil {
			return err
		}
		cfg.OutputFormat = format
	}
	a.cfg = cfg

	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	a.client = lethe.New(cfg.BaseURL, lethe.WithLogger(logger))
	logger.Debug("lethe client ready", "url", a.client.BaseURL(), "format", cfg.OutputFormat)
	return nil
}

// emit encodes v in the configured format and writes it to path, or to
// stdout when path is empty.
func (a *app) emit(v any, path string) error {
	out, err := encode(v, a.cfg.OutputFormat)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := a.stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.stderr, "Output saved to %s\n", path)
	return nil
}

// encode renders v as indented JSON or as YAML. YAML goes through the JSON
// form so field names and opaque entity fields match the wire.
func encode(v any, format string) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if format != config.FormatYAML {
		return append(b, '\n'), nil
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}
