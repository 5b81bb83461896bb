package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepdefender/internal/mockserver"
)

var (
	mockAddr        string
	mockProbability float64
	mockFailStatus  int
	mockLatency     time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a stand-in classification service for demos and testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Mock.Addr = mockAddr
		}
		if cmd.Flags().Changed("probability") {
			cfg.Mock.Probability = mockProbability
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if mockFailStatus != 0 && (mockFailStatus < 400 || mockFailStatus > 599) {
			return fmt.Errorf("--fail-status must be an HTTP error status (400-599), got %d", mockFailStatus)
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		listener, err := net.Listen("tcp", cfg.Mock.Addr)
		if err != nil {
			return err
		}
		server := newHTTPServer(mockserver.NewRouter(mockserver.Options{
			Probability: cfg.Mock.Probability,
			FailStatus:  mockFailStatus,
			Latency:     mockLatency,
			Logger:      logger,
		}))
		logger.Info("stand-in classifier listening",
			zap.String("addr", listener.Addr().String()),
			zap.Float64("probability", cfg.Mock.Probability),
			zap.Int("fail_status", mockFailStatus),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serveHTTP(ctx, server, listener, logger)
	},
}

func init() {
	flags := mockCmd.Flags()
	flags.StringVar(&mockAddr, "addr", "", "listen address (default from config mock.addr)")
	flags.Float64Var(&mockProbability, "probability", -1, "fixed deepfake probability; negative derives one per image")
	flags.IntVar(&mockFailStatus, "fail-status", 0, "respond with this HTTP status instead of a prediction")
	flags.DurationVar(&mockLatency, "latency", 0, "delay before each response")
	rootCmd.AddCommand(mockCmd)
}
