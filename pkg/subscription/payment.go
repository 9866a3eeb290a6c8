package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/usage"
)

// PremiumDuration is how long a simulated purchase stays active.
const PremiumDuration = 30 * 24 * time.Hour

var (
	ErrSignInRequired    = errors.New("sign in required before purchase")
	ErrAlreadyProcessing = errors.New("a payment is already being processed")
)

// Processor runs the simulated premium purchase: no real PSP is involved,
// the "payment" is a short delay followed by writing an active 30-day
// premium record to the remote store.
type Processor struct {
	remote     RemoteStore
	cache      *Cache
	accountant *usage.Accountant
	log        zerolog.Logger

	processing atomic.Bool

	// Delay simulates payment-gateway latency. Tests set it to zero.
	Delay time.Duration
	Now   func() time.Time
}

func NewProcessor(remote RemoteStore, cache *Cache, accountant *usage.Accountant, log zerolog.Logger) *Processor {
	return &Processor{
		remote:     remote,
		cache:      cache,
		accountant: accountant,
		log:        log.With().Str("component", "payment").Logger(),
		Delay:      2 * time.Second,
		Now:        time.Now,
	}
}

// ProcessPremiumSubscription activates premium for the session's user and
// returns the stored record. Only one purchase runs at a time.
func (p *Processor) ProcessPremiumSubscription(ctx context.Context, session *domain.Session) (*domain.Subscription, error) {
	if session == nil {
		return nil, ErrSignInRequired
	}
	if !p.processing.CompareAndSwap(false, true) {
		return nil, ErrAlreadyProcessing
	}
	defer p.processing.Store(false)

	p.log.Info().Str("user", session.UID).Msg("processing premium subscription")

	select {
	case <-time.After(p.Delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	now := p.Now()
	expiresAt := now.Add(PremiumDuration)
	sub := &domain.Subscription{
		IsActive:  true,
		Plan:      domain.SubscriptionPlanPremium,
		ExpiresAt: &expiresAt,
		UpdatedAt: now,
	}

	if err := p.remote.Put(ctx, session.UID, sub); err != nil {
		p.log.Error().Err(err).Str("user", session.UID).Msg("storing premium subscription")
		return nil, err
	}

	// Force the next session refresh to see the new record, and keep the
	// accounting tier flag in step with it.
	p.cache.Invalidate(ctx, session.UID)
	if err := p.accountant.SetPremiumFlag(ctx, true); err != nil {
		p.log.Warn().Err(err).Msg("updating premium flag")
	}

	p.log.Info().Str("user", session.UID).Time("expires_at", expiresAt).Msg("premium subscription activated")
	return sub, nil
}
