package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted is the shell convention for a process stopped by SIGINT.
const exitInterrupted = 130

// interruptContext ties a command to Ctrl-C. The first SIGINT or SIGTERM
// cancels the returned context: the in-flight storage request fails with
// context.Canceled and withSession still writes the session file. A second
// signal before the command returns ends the process at once.
func interruptContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 2) //nolint:mnd // first and second interrupt
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)

		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			logger.Info("canceling request", slog.String("signal", sig.String()))
			cancel()
		}

		select {
		case <-parent.Done():
		case sig := <-signals:
			logger.Warn("second interrupt, exiting", slog.String("signal", sig.String()))
			os.Exit(exitInterrupted)
		}
	}()

	return ctx
}
