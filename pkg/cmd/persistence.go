package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluxionhq/fluxion/pkg/persistence"
	"github.com/fluxionhq/fluxion/pkg/persistence/file"
	"github.com/fluxionhq/fluxion/pkg/persistence/postgresql"
)

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, databaseURL, logger)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
