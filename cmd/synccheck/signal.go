package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// interruptible derives a context that is cancelled on SIGINT or SIGTERM. Scenario cleanup
// runs on a detached context, so sandboxes are still released after the signal.
func interruptible(parent context.Context, notice io.Writer) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-done:
				return
			default:
			}
			if parent.Err() == nil {
				fmt.Fprintln(notice, "\nReceived shutdown signal, releasing sandboxes...")
			}
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		stop()
	}
}
