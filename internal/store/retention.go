package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetentionJanitor periodically sweeps ProxyRequestLog rows older than
// MaxAge, bounding the log's growth the way the proxy's quota
// accounting assumes.
type RetentionJanitor struct {
	store  Store
	maxAge time.Duration
	every  time.Duration
}

// NewRetentionJanitor builds a janitor that deletes ProxyRequestLog
// rows older than maxAge, checking every interval.
func NewRetentionJanitor(s Store, maxAge, interval time.Duration) *RetentionJanitor {
	return &RetentionJanitor{store: s, maxAge: maxAge, every: interval}
}

// Run sweeps on a ticker until ctx is canceled.
func (j *RetentionJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepOnce(ctx)
		}
	}
}

func (j *RetentionJanitor) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.maxAge)
	deleted, err := j.store.DeleteRequestLogsBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("retention: sweep failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("retention: swept proxy request log")
	}
}
