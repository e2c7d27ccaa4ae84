package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type cleanupFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// cleanupStack releases resources in reverse acquisition order.
type cleanupStack struct {
	entries []cleanupFunc
}

func (s *cleanupStack) push(name string, fn func(ctx context.Context) error) {
	s.entries = append(s.entries, cleanupFunc{name: name, fn: fn})
}

// unwind runs every entry, newest first, and joins their errors. A failing entry does not
// stop the ones below it.
func (s *cleanupStack) unwind(ctx context.Context, log *slog.Logger) error {
	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if err := entry.fn(ctx); err != nil {
			log.Error("Cleanup failed", "resource", entry.name, "error", err)
			errs = append(errs, fmt.Errorf("release %s: %w", entry.name, err))
			continue
		}
		log.Debug("Cleanup done", "resource", entry.name)
	}
	s.entries = nil
	return errors.Join(errs...)
}

func (s *cleanupStack) len() int {
	return len(s.entries)
}
