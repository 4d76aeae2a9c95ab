package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/gonkalabs/lethe-go/pkg/lethe"
)

var errNoInput = errors.New("no input provided")

func newAnonymizeCmd(a *app) *cobra.Command {
	var (
		text, input, output string
		synthetic           bool
	)
	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Anonymize a text, a file or standard input",
		Example: `  lethe anonymize -t "Jan Kowalski, PESEL 90010112345"
  lethe anonymize -i input.txt -o output.json
  cat input.txt | lethe anonymize -s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			synth := synthetic || a.cfg.GenerateSynthetic

			var (
				res *lethe.Result
				err error
			)
			switch {
			case cmd.Flags().Changed("text"):
				if strings.TrimSpace(text) == "" {
					return errNoInput
				}
				a.progress()
				res, err = a.client.Anonymize(ctx, text, synth)
			case input != "":
				b, rerr := os.ReadFile(input)
				if rerr != nil {
					return rerr
				}
				if strings.TrimSpace(string(b)) == "" {
					return errNoInput
				}
				a.progress()
				res, err = a.client.AnonymizeFile(ctx, input, synth)
			default:
				b, rerr := io.ReadAll(a.stdin)
				if rerr != nil {
					return fmt.Errorf("read stdin: %w", rerr)
				}
				if strings.TrimSpace(string(b)) == "" {
					return errNoInput
				}
				a.progress()
				res, err = a.client.Anonymize(ctx, string(b), synth)
			}
			if err != nil {
				return err
			}
			if err := a.emit(res, output); err != nil {
				return err
			}
			a.summarize(*res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&text, "text", "t", "", "text to anonymize")
	f.StringVarP(&input, "input", "i", "", "upload this file instead of reading text")
	f.StringVarP(&output, "output", "o", "", "write the result here instead of stdout")
	f.BoolVarP(&synthetic, "synthetic", "s", false, "also generate synthetic data (LETHE_SYNTHETIC)")
	cmd.MarkFlagsMutuallyExclusive("text", "input")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		output    string
		synthetic bool
	)
	cmd := &cobra.Command{
		Use:   "batch [FILE...]",
		Short: "Anonymize several texts in one request",
		Long: `Each FILE is sent as one text. Without files, every non-blank line of
standard input is sent as one text. Results keep the input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := a.batchInput(args)
			if err != nil {
				return err
			}
			if len(texts) == 0 {
				return errNoInput
			}
			a.progress()
			results, err := a.client.AnonymizeBatch(cmd.Context(), texts, synthetic || a.cfg.GenerateSynthetic)
			if err != nil {
				return err
			}
			if err := a.emit(results, output); err != nil {
				return err
			}
			entities := lo.SumBy(results, func(r lethe.Result) int { return len(r.Entities) })
			color.New(color.FgCyan).Fprintf(a.stderr, "Processed %d texts, found %d entities\n", len(results), entities)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the results here instead of stdout")
	cmd.Flags().BoolVarP(&synthetic, "synthetic", "s", false, "also generate synthetic data (LETHE_SYNTHETIC)")
	return cmd
}

func (a *app) batchInput(files []string) ([]string, error) {
	if len(files) > 0 {
		texts := make([]string, 0, len(files))
		for _, path := range files {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			texts = append(texts, string(b))
		}
		return texts, nil
	}

	var lines []string
	sc := bufio.NewScanner(a.stdin)
	sc.Buffer(make([]byte, 0, 64<<10), 10<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lo.Filter(lines, func(l string, _ int) bool {
		return strings.TrimSpace(l) != ""
	}), nil
}

func newSynthesizeCmd(a *app) *cobra.Command {
	var text, entitiesPath, output string
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Replace already detected entities with fictional values",
		Long: `Reads entities from a JSON file holding either an entity list or a full
anonymize result (as written by "lethe anonymize -o"). For a result file the
text defaults to its "original" field.`,
		Example: `  lethe anonymize -t "Piotrek i Janek" -o result.json
  lethe synthesize -e result.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			original, entities, err := readEntities(entitiesPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("text") {
				text = original
			}
			if strings.TrimSpace(text) == "" {
				return errNoInput
			}
			a.progress()
			res, err := a.client.Synthesize(cmd.Context(), text, entities)
			if err != nil {
				return err
			}
			return a.emit(res, output)
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to rewrite")
	cmd.Flags().StringVarP(&entitiesPath, "entities", "e", "", "JSON file with entities or an anonymize result")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here instead of stdout")
	_ = cmd.MarkFlagRequired("entities")
	return cmd
}

// readEntities loads either a JSON entity list or a Result. For a Result it
// also returns the original text.
func readEntities(path string) (string, []lethe.Entity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var list []lethe.Entity
	if err := json.Unmarshal(b, &list); err == nil {
		return "", list, nil
	}
	var res lethe.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return "", nil, fmt.Errorf("%s: not an entity list or anonymize result: %w", path, err)
	}
	return res.Original, res.Entities, nil
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.emit(h, ""); err != nil {
				return err
			}
			if !h.OK() {
				return fmt.Errorf("service at %s reports status %q", a.client.BaseURL(), h.Status)
			}
			return nil
		},
	}
}

func (a *app) progress() {
	color.New(color.FgYellow).Fprintln(a.stderr, "Processing...")
}

func (a *app) summarize(res lethe.Result) {
	color.New(color.FgCyan).Fprintf(a.stderr, "Found %d entities\n", len(res.Entities))
	if res.HasSynthetic() {
		color.New(color.FgCyan).Fprintln(a.stderr, "Synthetic data generated")
	}
}
