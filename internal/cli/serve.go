package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/census/internal/web"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API.",
		Long: `Serves previews, reconciliation and loads over HTTP, plus /healthz
and /metrics. Without DATABASE_URL the load endpoints answer 503.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := a.newRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.service.HasDatabase() {
				a.log.Warn("DATABASE_URL not set, load endpoints disabled")
			}

			server := web.NewServer(rt.service, a.cfg, a.log, rt.registry)
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()

			if status := rt.service.Limiter().Status(); status.Active > 0 {
				a.log.Info("waiting for loads to complete", "active", status.Active)
				if err := rt.service.Limiter().WaitForDrain(shutdownCtx); err != nil {
					a.log.Warn("loads did not complete in time", "error", err)
				}
			}

			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.log.Info("server stopped")
			return nil
		},
	}
}
