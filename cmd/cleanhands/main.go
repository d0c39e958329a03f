// Command cleanhands retrieves DC Certificate of Clean Hands documents.
//
// The run subcommand executes one validation episode and prints the result
// as JSON; the serve subcommand exposes the workflow as an HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	cleanhands "github.com/justmg/dc-clean-hands-docker-api"
	"github.com/justmg/dc-clean-hands-docker-api/internal/config"
	"github.com/justmg/dc-clean-hands-docker-api/internal/httpapi"
)

var (
	cfgPath     string
	verbose     bool
	headful     bool
	screenshots bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cleanhands",
	Short: "DC MyTax Certificate of Clean Hands retrieval",
	Long: `cleanhands automates the DC MyTax "Validate a Certificate of Clean Hands"
workflow: it validates a notice number, classifies the compliance status,
and captures the resulting certificate or notice PDF.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg = zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one validation episode and print the result as JSON",
	RunE:  runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow as an HTTP API",
	RunE:  serve,
}

var (
	noticeFlag string
	last4Flag  string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd.Flags().StringVar(&noticeFlag, "notice", "", "notice number (e.g. L0012322733)")
	runCmd.Flags().StringVar(&last4Flag, "last4", "", "last 4 digits of the taxpayer ID")
	runCmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")
	runCmd.Flags().BoolVar(&screenshots, "screenshots", false, "save landing and result page screenshots")
	_ = runCmd.MarkFlagRequired("notice")
	_ = runCmd.MarkFlagRequired("last4")

	rootCmd.AddCommand(runCmd, serveCmd)
}

func agentOptions(cfg *config.Config) []cleanhands.Option {
	opts := []cleanhands.Option{
		cleanhands.WithHeadless(cfg.Headless && !headful),
		cleanhands.WithArtifactsDir(cfg.ArtifactsDir),
		cleanhands.WithArtifactPrefix(cfg.ArtifactPrefix),
		cleanhands.WithBaseURL(cfg.BaseURL),
		cleanhands.WithLogger(logger),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, cleanhands.WithChromePath(cfg.ChromePath))
	}
	if cfg.AutoDownload {
		opts = append(opts, cleanhands.WithAutoDownload())
	}
	if cfg.NoSandbox || os.Geteuid() == 0 {
		opts = append(opts, cleanhands.WithNoSandbox())
	}
	if cfg.Screenshots || screenshots {
		opts = append(opts, cleanhands.WithScreenshots())
	}
	return opts
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	agent, err := cleanhands.NewAgent(agentOptions(cfg)...)
	if err != nil {
		return err
	}
	defer agent.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := agent.Run(ctx, noticeFlag, last4Flag)
	if err != nil {
		return err
	}
	fmt.Println(res.JSON())
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	agent, err := cleanhands.NewAgent(agentOptions(cfg)...)
	if err != nil {
		return err
	}
	defer agent.Close()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.New(agent, cfg.ArtifactsDir, agent.Logger()),
		// Episodes run inside the request; generous write window.
		WriteTimeout: 10 * time.Minute,
		ReadTimeout:  30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
