package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring API server",
	Long: `Serve a read-only JSON API over the gallery and the attendance
log: health, daily presence counters and recent attempts.

Examples:
  face-attend serve
  face-attend serve --host 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides WEB_HOST)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides WEB_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	host := mustGetString(cmd, "host")
	port := mustGetInt(cmd, "port")

	cfg := config.Load()
	if host == "" {
		host = cfg.Web.Host
	}
	if port == 0 {
		port = cfg.Web.Port
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := web.NewServer(host, port, st, st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
