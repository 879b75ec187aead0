package cmd

import (
	"context"

	"github.com/rs/zerolog/log"

	"plannersync/internal/config"
	"plannersync/internal/domain"
	"plannersync/internal/feed"
	"plannersync/internal/remote"
	"plannersync/internal/store"
)

// runCmd starts the long-lived coordinator with its periodic schedules. The
// cleanup flushes any pending debounced push so shutdown never strands a
// local edit.
func runCmd(ctx context.Context) (<-chan struct{}, func()) {
	co := buildCoordinator(ctx)
	co.Schedule()
	return nil, func() {
		co.Flush(context.Background())
	}
}

// onceCmd runs a single pull-merge-push cycle and flushes, for cron or
// debugging use. Closing done lets the process exit without a signal.
func onceCmd(ctx context.Context) (<-chan struct{}, func()) {
	co := buildCoordinator(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := co.SyncData(ctx); err != nil {
			log.Err(err).Msg("sync cycle failed")
		}
		co.Flush(ctx)
	}()
	return done, nil
}

// feedsCmd runs a single feed ingestion cycle and flushes.
func feedsCmd(ctx context.Context) (<-chan struct{}, func()) {
	co := buildCoordinator(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := co.SyncFeeds(ctx); err != nil {
			log.Err(err).Msg("feed cycle failed")
		}
		co.Flush(ctx)
	}()
	return done, nil
}

func buildCoordinator(ctx context.Context) *domain.Coordinator {
	cfg := config.Gist()

	st, err := store.New(cfg.String(config.DATA_DIR))
	if err != nil {
		log.Fatal().Err(err).Msg("error opening local store")
	}
	rc := remote.New(
		cfg.String(config.REMOTE_URL),
		remote.StaticCredential(cfg.String(config.REMOTE_TOKEN)),
	)
	return domain.New(ctx, st, rc, feed.NewFetcher(), cfg.Strings(config.FEED_URLS))
}
