package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
)

func noopCmd(ctx context.Context) (<-chan struct{}, func()) {
	log.Info().Msg("noop command, waiting for shutdown signal")
	return nil, nil
}
