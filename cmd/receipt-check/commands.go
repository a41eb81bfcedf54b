package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/radityaharya/workers-receipt-parser/internal/discrepancy"
	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/money"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

// errInvalid is returned by --strict runs that found invalid receipts
var errInvalid = errors.New("one or more receipts are invalid")

type options struct {
	rulesPath string
	format    string
	strict    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "receipt-check",
		Short: "Check extracted receipts for arithmetic and consistency problems",
		Long: `receipt-check recomputes the discrepancy of receipt JSON documents and runs
the consistency checks used by the receipt parser service.

Example Usage:
  receipt-check validate receipt.json
  receipt-check validate --format json --strict *.json
  cat receipt.json | receipt-check validate -
  receipt-check rules --rules ./rules.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "YAML file overriding validation thresholds")

	validateCmd := &cobra.Command{
		Use:   "validate <file.json>...",
		Short: "Validate receipt JSON files ('-' reads stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}
	validateCmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	validateCmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error if any receipt is invalid")

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "List the checks and the thresholds in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, opts)
		},
	}

	root.AddCommand(validateCmd, rulesCmd)
	return root
}

type fileResult struct {
	File string `json:"file"`
	model.Receipt
	Validation validation.Result `json:"validation"`
}

func runValidate(cmd *cobra.Command, opts *options, files []string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}

	cfg, err := validation.LoadConfig(opts.rulesPath)
	if err != nil {
		return err
	}
	validator := validation.New(cfg)

	results := make([]fileResult, 0, len(files))
	for _, name := range files {
		r, err := readReceipt(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}
		annotated := discrepancy.Calculate(r.WithoutDerived())
		results = append(results, fileResult{
			File:       name,
			Receipt:    annotated,
			Validation: validator.Validate(annotated),
		})
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
	} else {
		writeText(out, results)
	}

	if opts.strict {
		for _, r := range results {
			if !r.Validation.Valid {
				return errInvalid
			}
		}
	}
	return nil
}

func readReceipt(stdin io.Reader, name string) (model.Receipt, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return model.Receipt{}, fmt.Errorf("reading %s: %w", name, err)
	}

	var r model.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Receipt{}, fmt.Errorf("decoding %s: %w", name, err)
	}
	return r, nil
}

func writeText(w io.Writer, results []fileResult) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		status := "valid"
		if !r.Validation.Valid {
			status = "INVALID"
		}
		fmt.Fprintf(w, "%s: %s, confidence %s", r.File, status, money.Format2(r.Validation.ConfidenceScore))
		if s := r.Summary; s != nil && s.Discrepancy.Valid {
			fmt.Fprintf(w, ", discrepancy %s", money.Format2(s.Discrepancy.Value))
		}
		fmt.Fprintln(w)

		if len(r.Validation.Issues) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, issue := range r.Validation.Issues {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", strings.ToUpper(issue.Severity.String()), issue.Type, issue.Message)
		}
		tw.Flush()
	}
}

func runRules(cmd *cobra.Command, opts *options) error {
	cfg, err := validation.LoadConfig(opts.rulesPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, rule := range validation.Catalog() {
		types := make([]string, len(rule.Emits))
		for j, t := range rule.Emits {
			types[j] = string(t)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, rule.Name, strings.Join(types, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding thresholds: %w", err)
	}
	return enc.Close()
}
