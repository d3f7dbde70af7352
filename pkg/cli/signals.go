package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM so the gateway can drain in-flight work. A second signal skips the
// graceful path and exits immediately.
func SetupSignalHandler() context.Context {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return handleSignals(sigCh, os.Exit)
}

func handleSignals(sigCh <-chan os.Signal, exit func(int)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sig := <-sigCh
		slog.Warn("shutdown signal received, draining", "signal", sig.String())
		cancel()

		sig = <-sigCh
		slog.Error("second shutdown signal, exiting now", "signal", sig.String())
		exit(1)
	}()

	return ctx
}
