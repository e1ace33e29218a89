package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/codec"
)

type convertOptions struct {
	to    string
	out   string
	rules bool
}

func newConvertCommand(a *app) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a definition between YAML and JSON",
		Long: `Convert a workflow or rule set definition between YAML and JSON.

The input format is taken from the file extension. Output goes to stdout
unless --out is given.

Examples:
  arbiter convert workflows/personal-loan.yaml --to json
  arbiter convert rules/affordability.json --rules --to yaml --out rules/affordability.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.to, "to", "", "target format: yaml or json")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.rules, "rules", false, "treat the input as a standalone rule set")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, path string, opts *convertOptions) error {
	to, err := codec.ParseFormat(opts.to)
	if err != nil {
		return cli.NewUsageError("convert", err)
	}

	dec := a.decoder()
	var data []byte
	if opts.rules {
		rules, err := dec.ReadRulesFile(path)
		if err != nil {
			return cli.NewCommandError("convert", err)
		}
		data, err = codec.EncodeRules(rules, to)
		if err != nil {
			return cli.NewCommandError("convert", err)
		}
	} else {
		def, err := dec.ReadWorkflowFile(path)
		if err != nil {
			return cli.NewCommandError("convert", err)
		}
		data, err = codec.EncodeWorkflow(def, to)
		if err != nil {
			return cli.NewCommandError("convert", err)
		}
	}

	if opts.out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return cli.NewCommandError("convert", err)
	}
	fmt.Fprintf(a.stderr, "✓ Wrote %s (%s)\n", opts.out, to)
	return nil
}
