// Package usage tracks daily per-feature call counts against tier-based
// limits. Counters live in the key-value store keyed by calendar date, so a
// new day simply starts a fresh key; there is no reset operation.
package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

const FREE_GPT_DAILY_LIMIT = 5
const FREE_TTS_DAILY_LIMIT = 0
const PREMIUM_DAILY_LIMIT = 15

// PremiumFlagKey is the standalone cached premium flag the tier lookup
// reads. It is deliberately independent of the live subscription record;
// see the product note in DESIGN.md before unifying the two.
const PremiumFlagKey = "isPremium"

const keyPrefix = "usage_"

// AnonymousIdentity is the counter bucket used when no session exists.
const AnonymousIdentity = ""

type Accountant struct {
	store kvstore.Store
	log   zerolog.Logger

	// Now is overridable in tests to pin the date key.
	Now func() time.Time
}

func NewAccountant(store kvstore.Store, log zerolog.Logger) *Accountant {
	return &Accountant{
		store: store,
		log:   log.With().Str("component", "usage").Logger(),
		Now:   time.Now,
	}
}

// RecordAndCheck increments today's counter for the feature and reports
// whether the call is allowed. The incremented count is persisted even when
// the call is denied, so a denied attempt still inflates the counter for
// the rest of the day.
func (a *Accountant) RecordAndCheck(ctx context.Context, identity string, feature domain.Feature) (bool, error) {
	key := a.counterKey(identity)
	counts, err := a.readCounts(ctx, key)
	if err != nil {
		return false, err
	}

	counts[feature]++

	raw, err := json.Marshal(counts)
	if err != nil {
		return false, err
	}
	if err := a.store.Set(ctx, key, raw); err != nil {
		return false, err
	}

	limit := a.limits(ctx)[feature]
	allowed := counts[feature] <= limit
	if !allowed {
		a.log.Info().
			Str("feature", string(feature)).
			Int("count", counts[feature]).
			Int("limit", limit).
			Msg("daily usage limit exceeded")
	}
	return allowed, nil
}

// Count returns today's raw count for the feature without mutating it.
func (a *Accountant) Count(ctx context.Context, identity string, feature domain.Feature) (int, error) {
	counts, err := a.readCounts(ctx, a.counterKey(identity))
	if err != nil {
		return 0, err
	}
	return counts[feature], nil
}

// Remaining returns how many calls are left today, never negative.
func (a *Accountant) Remaining(ctx context.Context, identity string, feature domain.Feature) (int, error) {
	count, err := a.Count(ctx, identity, feature)
	if err != nil {
		return 0, err
	}
	remaining := a.limits(ctx)[feature] - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Limit returns the current daily limit for the feature.
func (a *Accountant) Limit(ctx context.Context, feature domain.Feature) int {
	return a.limits(ctx)[feature]
}

// SetPremiumFlag writes the standalone premium flag the tier lookup reads.
func (a *Accountant) SetPremiumFlag(ctx context.Context, premium bool) error {
	value := "false"
	if premium {
		value = "true"
	}
	return a.store.Set(ctx, PremiumFlagKey, []byte(value))
}

func (a *Accountant) limits(ctx context.Context) map[domain.Feature]int {
	if a.premiumFlag(ctx) {
		return map[domain.Feature]int{
			domain.FeatureGPT: PREMIUM_DAILY_LIMIT,
			domain.FeatureTTS: PREMIUM_DAILY_LIMIT,
		}
	}
	return map[domain.Feature]int{
		domain.FeatureGPT: FREE_GPT_DAILY_LIMIT,
		domain.FeatureTTS: FREE_TTS_DAILY_LIMIT,
	}
}

func (a *Accountant) premiumFlag(ctx context.Context) bool {
	raw, ok, err := a.store.Get(ctx, PremiumFlagKey)
	if err != nil {
		a.log.Warn().Err(err).Msg("reading premium flag")
		return false
	}
	return ok && string(raw) == "true"
}

func (a *Accountant) counterKey(identity string) string {
	date := a.Now().Format("2006-01-02")
	if identity == AnonymousIdentity {
		return keyPrefix + date
	}
	return keyPrefix + identity + "_" + date
}

func (a *Accountant) readCounts(ctx context.Context, key string) (map[domain.Feature]int, error) {
	counts := make(map[domain.Feature]int)
	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return counts, nil
	}
	if err := json.Unmarshal(raw, &counts); err != nil {
		// Corrupted counter data counts as an empty day.
		a.log.Warn().Err(err).Str("key", key).Msg("corrupted usage counter, resetting")
		return make(map[domain.Feature]int), nil
	}
	return counts, nil
}
