package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/recognize"
	"github.com/kozaktomas/face-registry/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Registry web server.
The web server serves the browser front-end, the registration API and
face recognition against registered users.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides PORT/WEB_PORT, default 9000)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("backend", "", "Storage backend (overrides STORAGE_BACKEND)")
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("backend") {
		cfg.Storage.Backend = mustGetString(cmd, "backend")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	metric, err := recognize.ParseMetric(cfg.Match.Metric)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, cfg.Storage.Backend)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Web.UploadDir, 0o755); err != nil {
		return multierr.Append(fmt.Errorf("creating upload directory: %w", err), closeStore())
	}

	recognizer := recognize.New(store, metric, cfg.Match.Threshold, recognize.WithLogger(logger))
	server := web.NewServer(cfg, store, recognizer, logger)

	logger.Info("face registry ready",
		zap.String("url", fmt.Sprintf("http://%s", server.Addr())),
		zap.String("backend", cfg.Storage.Backend),
		zap.Float64("match_threshold", recognizer.Threshold()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return multierr.Append(err, closeStore())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return multierr.Combine(
		server.Shutdown(shutdownCtx),
		<-errCh,
		closeStore(),
	)
}
