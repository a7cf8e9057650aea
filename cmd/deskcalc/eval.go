package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

var evalCmd = &cobra.Command{
	Use:   "eval [EXPR...]",
	Short: "Evaluate expressions and print one result per line",
	Long: `Evaluate each argument as an arithmetic expression. With no arguments,
expressions are read from standard input, one per line.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().Bool("explain", false, "Print the reason next to each Error! result")
}

func runEval(cmd *cobra.Command, args []string) error {
	engine, err := newCalculator(cmd)
	if err != nil {
		return err
	}
	explain, _ := cmd.Flags().GetBool("explain")

	if len(args) > 0 {
		for _, expr := range args {
			printResult(cmd.OutOrStdout(), engine, expr, explain)
		}
		return nil
	}
	return evalLines(cmd.InOrStdin(), cmd.OutOrStdout(), engine, explain)
}

// evalLines evaluates every line of r.
func evalLines(r io.Reader, w io.Writer, engine *calc.Calculator, explain bool) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		printResult(w, engine, scanner.Text(), explain)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading expressions: %w", err)
	}
	return nil
}

func printResult(w io.Writer, engine *calc.Calculator, expr string, explain bool) {
	result, err := engine.Diagnose(expr)
	if err == nil {
		fmt.Fprintln(w, result)
		return
	}
	if explain {
		fmt.Fprintf(w, "%s  (%v)\n", color.RedString(result), err)
		return
	}
	fmt.Fprintln(w, color.RedString(result))
}
