// Package jobs runs the scheduled maintenance work: usage counters from
// past days are dead keys once the date rolls over and get pruned nightly.
package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

// usageRetention is how long counter keys for past days are kept around
// before pruning.
const usageRetention = 7 * 24 * time.Hour

const usageKeyPrefix = "usage_"

type CronManager struct {
	cron  *cron.Cron
	store kvstore.Store
	log   zerolog.Logger

	Now func() time.Time
}

func NewCronManager(store kvstore.Store, log zerolog.Logger) *CronManager {
	return &CronManager{
		cron:  cron.New(),
		store: store,
		log:   log.With().Str("component", "jobs").Logger(),
		Now:   time.Now,
	}
}

// SetupJobs registers the scheduled jobs.
func (cm *CronManager) SetupJobs() error {
	// Nightly at 03:00: drop usage counters older than the retention window.
	_, err := cm.cron.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		pruned, err := cm.PruneStaleUsage(ctx)
		if err != nil {
			cm.log.Error().Err(err).Msg("usage prune failed")
			return
		}
		cm.log.Info().Int("pruned", pruned).Msg("usage prune complete")
	})
	return err
}

func (cm *CronManager) Start() {
	cm.cron.Start()
}

func (cm *CronManager) Stop() {
	cm.cron.Stop()
}

// PruneStaleUsage deletes usage-counter keys whose date is older than
// the retention window. Returns how many keys were removed.
func (cm *CronManager) PruneStaleUsage(ctx context.Context) (int, error) {
	keys, err := cm.store.Keys(ctx, usageKeyPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := cm.Now().Add(-usageRetention)
	pruned := 0
	for _, key := range keys {
		date, ok := usageKeyDate(key)
		if !ok {
			continue
		}
		if date.Before(cutoff) {
			if err := cm.store.Delete(ctx, key); err != nil {
				cm.log.Warn().Err(err).Str("key", key).Msg("deleting stale usage key")
				continue
			}
			pruned++
		}
	}
	return pruned, nil
}

// usageKeyDate extracts the trailing YYYY-MM-DD from a usage counter key.
func usageKeyDate(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, usageKeyPrefix) || len(key) < len(usageKeyPrefix)+10 {
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", key[len(key)-10:])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
