// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/persistence/file"
	"github.com/bloomcare/careflow/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the database URL scheme.
// postgres:// and postgresql:// URLs get the PostgreSQL store, everything
// else is treated as a file-store root path (with an optional file:// prefix).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql persistence: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
