package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Evaluate a YAML or JSON batch file",
	Long: `Evaluate every expression of a batch file and print a results table.
The command fails when any expression does not match its expected result.
Use "-" to read the batch from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchFile,
}

func runBatchFile(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), batch.MaxSourceSize+1))
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}

	file, err := batch.Parse(data)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	strict := file.Strict
	if v, ok := strictOverride(cmd); ok {
		strict = v
	}
	engine := calc.New(calc.WithLogger(logger), calc.WithStrictTokens(strict))

	report, err := runFile(cmd.Context(), cmd.OutOrStdout(), engine, file)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d expectations failed", report.Failed, len(report.Outcomes))
	}
	return nil
}

// runFile evaluates file and writes the results table to w.
func runFile(ctx context.Context, w io.Writer, engine calc.Engine, file *batch.File) (*batch.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := batch.Run(ctx, engine, file.Entries)
	if err != nil {
		return nil, err
	}

	if file.Name != "" {
		fmt.Fprintln(w, color.GreenString("Batch %s:", file.Name))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tEXPRESSION\tRESULT\tEXPECT\tSTATUS")
	for i, o := range report.Outcomes {
		expect, status := "-", "-"
		if o.HasExpect {
			expect = o.Expect
			status = color.GreenString("PASS")
			if !o.Passed {
				status = color.RedString("FAIL")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, o.Expression, o.Result, expect, status)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d expressions, %d failed expectations\n", len(report.Outcomes), report.Failed)
	return report, nil
}
