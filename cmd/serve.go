package cmd

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deepdefender/internal/mockserver"
	"deepdefender/internal/web"
)

var (
	serveAddr     string
	serveWithMock bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser analyzer on a local address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Web.Addr = serveAddr
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		group, ctx := errgroup.WithContext(ctx)

		if serveWithMock {
			mockListener, err := net.Listen("tcp", cfg.Mock.Addr)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("endpoint") {
				cfg.Classifier.Endpoint = "http://" + mockListener.Addr().String() + mockserver.PredictPath
			}
			mock := newHTTPServer(mockserver.NewRouter(mockserver.Options{
				Probability: cfg.Mock.Probability,
				Logger:      logger,
			}))
			logger.Info("stand-in classifier listening", zap.String("addr", mockListener.Addr().String()))
			group.Go(func() error { return serveHTTP(ctx, mock, mockListener, logger) })
		}

		orch, err := newOrchestrator(cfg, logger)
		if err != nil {
			stop()
			_ = group.Wait()
			return err
		}
		defer orch.Close()

		listener, err := net.Listen("tcp", cfg.Web.Addr)
		if err != nil {
			stop()
			_ = group.Wait()
			return err
		}
		site := web.New(orch, web.Options{
			Limits: limits(cfg),
			Logger: logger,
			Debug:  cfg.Log.Level == "debug",
		})
		logger.Info("browser analyzer listening", zap.String("url", "http://"+listener.Addr().String()+"/"))
		cmd.Printf("Open http://%s/ in your browser\n", listener.Addr().String())
		group.Go(func() error { return serveHTTP(ctx, newHTTPServer(site.Handler()), listener, logger) })

		return group.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config web.addr)")
	serveCmd.Flags().BoolVar(&serveWithMock, "with-mock", false, "also run the stand-in classifier and point the analyzer at it")
	rootCmd.AddCommand(serveCmd)
}
