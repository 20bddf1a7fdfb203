package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pir/internal/ui"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	Long: `Start an HTTP server that serves the issue page.
The page talks to the backend at api_url (see pir config).
By default it listens on port 5173. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 5173, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func serveRun(ctx context.Context) error {
	t := getTracker()

	handler, err := ui.Handler(t)
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	// Initial load, as the page does when it first mounts. A failure only
	// shows up in the banner; the page still serves.
	t.LoadIssues(context.Background())
	if msg := t.Snapshot().Error; msg != "" {
		ui.Warning("%s (%s)", msg, viper.GetString("api_url"))
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	ui.Info("Serving UI at http://localhost%s", addr)
	return listenAndServe(ctx, addr, handler)
}

// listenAndServe runs handler on addr until a shutdown signal arrives or ctx
// is cancelled, then drains in-flight requests.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
