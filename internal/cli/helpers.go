package cli

import (
	"fmt"

	"github.com/splitlab/splitlab/internal/cache"
	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
)

// withService opens the database, wires the service, executes the function,
// and handles cleanup. CLI invocations are one-shot, so reads skip the TTL
// cache and go straight to the store.
func withService(fn func(*experiments.Service) error) error {
	return withStore(func(s *store.SQLiteStore) error {
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer logger.Sync()

		return fn(experiments.NewService(s, cache.Noop{}, logger))
	})
}

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}
