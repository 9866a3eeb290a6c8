package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
	"github.com/haeso-app/haeso-api/pkg/subscription"
	"github.com/haeso-app/haeso-api/pkg/usage"
)

func newProcessor(t *testing.T) (*subscription.Processor, *subscription.Cache, subscription.RemoteStore, *usage.Accountant) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	remote := subscription.NewKVRemoteStore(store)
	cache := subscription.NewCache(remote, store, zerolog.Nop())
	accountant := usage.NewAccountant(store, zerolog.Nop())
	processor := subscription.NewProcessor(remote, cache, accountant, zerolog.Nop())
	processor.Delay = 0
	return processor, cache, remote, accountant
}

func TestProcessPremiumSubscription_RequiresSession(t *testing.T) {
	processor, _, _, _ := newProcessor(t)

	_, err := processor.ProcessPremiumSubscription(context.Background(), nil)
	require.ErrorIs(t, err, subscription.ErrSignInRequired)
}

func TestProcessPremiumSubscription_ActivatesThirtyDays(t *testing.T) {
	ctx := context.Background()
	processor, cache, remote, accountant := newProcessor(t)

	now := time.Now()
	processor.Now = func() time.Time { return now }

	session := &domain.Session{UID: "u1", Provider: domain.AuthProviderKakao}
	sub, err := processor.ProcessPremiumSubscription(ctx, session)
	require.NoError(t, err)

	require.True(t, sub.IsActive)
	require.Equal(t, domain.SubscriptionPlanPremium, sub.Plan)
	require.NotNil(t, sub.ExpiresAt)
	require.Equal(t, now.Add(subscription.PremiumDuration), *sub.ExpiresAt)
	require.True(t, sub.IsPremium(now))

	// Source of truth updated.
	stored, err := remote.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, stored.IsPremium(now))

	// The accounting tier flag follows the purchase.
	require.Equal(t, usage.PREMIUM_DAILY_LIMIT, accountant.Limit(ctx, domain.FeatureGPT))

	// The next fetch sees the fresh record.
	fetched := cache.Fetch(ctx, "u1")
	require.NotNil(t, fetched)
	require.True(t, fetched.IsPremium(now))
}
