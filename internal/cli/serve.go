package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd runs the HTTP API together with the periodic sweeps.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SLA/overdue sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx)
		},
	}
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func Serve(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(a)

	server := a.HTTP()
	a.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(a.Config.App.Addr())
	}()
	a.Logger.Info("api listening", zap.String("addr", a.Config.App.Addr()))

	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logError(a, "fiber listen", err)
			return err
		}
	}
	return server.Shutdown()
}
