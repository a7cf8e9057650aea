package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/deskcalc/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the calculator keypad in the terminal",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().Bool("inline", false, "Render below the prompt instead of using the alternate screen")
}

func runTUI(cmd *cobra.Command, args []string) error {
	engine, err := newCalculator(cmd)
	if err != nil {
		return err
	}

	var opts []tea.ProgramOption
	if inline, _ := cmd.Flags().GetBool("inline"); !inline {
		opts = append(opts, tea.WithAltScreen())
	}

	display, err := tui.Run(engine, opts...)
	if err != nil {
		return fmt.Errorf("keypad error: %w", err)
	}
	if display != "" {
		fmt.Fprintln(cmd.OutOrStdout(), display)
	}
	return nil
}
