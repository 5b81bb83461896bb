package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepdefender/internal/acquire"
	"deepdefender/internal/tui"
)

var reportDir string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Open the interactive analyzer, optionally starting with an image",
	Args:  cobra.MaximumNArgs(1),
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

		updates, unsubscribe := orch.Subscribe(16)
		defer unsubscribe()

		if len(args) == 1 {
			if _, err := orch.Submit(cmd.Context(), acquire.PathSource{Path: args[0], Limits: limits(cfg)}); err != nil {
				return err
			}
		}

		model := tui.NewModel(orch, updates, tui.Options{
			Chooser:   acquire.NewDialog(limits(cfg)),
			Limits:    limits(cfg),
			ReportDir: reportDir,
		})
		program := tea.NewProgram(model, tea.WithContext(cmd.Context()))
		if _, err := program.Run(); err != nil {
			logger.Error("terminal program failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&reportDir, "report-dir", ".", "directory reports are written to")
	rootCmd.AddCommand(analyzeCmd)
}
