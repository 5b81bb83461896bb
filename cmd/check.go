package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"deepdefender/internal/acquire"
	"deepdefender/internal/pipeline"
	"deepdefender/internal/present"
	"deepdefender/internal/tui"
)

var checkFormat string

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Analyze one image and print the verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		orch, err := newOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		defer orch.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		started, err := orch.Submit(ctx, acquire.PathSource{Path: args[0], Limits: limits(cfg)})
		if err != nil {
			return err
		}
		if started.Attempt == "" {
			return acquire.ErrNoFile
		}
		state, err := orch.AwaitSettled(ctx, started.Attempt)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), cmd.ErrOrStderr(), state, checkFormat)
	},
}

func printOutcome(out, errOut io.Writer, state pipeline.State, format string) error {
	if failure, ok := state.Failure(); ok {
		model := present.PresentOutcome(failure)
		fmt.Fprintln(errOut, checkDimStyle.Render(model.Hint))
		return fmt.Errorf("%s: %s", model.Title, model.Message)
	}

	if format == "" || format == "text" {
		model := present.Present(state)
		headline := lipgloss.NewStyle().Bold(true).Foreground(tui.ToneColor(model.Tone)).Render(model.Headline)
		fmt.Fprintf(out, "%s\n", checkFileStyle.Render(model.FileName))
		fmt.Fprintf(out, "%s\n", headline)
		fmt.Fprintln(out, tui.RenderSummary(tui.MetricRows(model.Metrics)))
		return nil
	}

	reportFormat, err := present.ParseFormat(format)
	if err != nil {
		return err
	}
	report, err := present.BuildReport(state, time.Now())
	if err != nil {
		return err
	}
	data, err := report.Render(reportFormat)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

var (
	checkFileStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	checkDimStyle  = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text, json or markdown")
	rootCmd.AddCommand(checkCmd)
}
