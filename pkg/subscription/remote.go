package subscription

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

const remoteKeyPrefix = "subscriptions_"

// KVRemoteStore implements RemoteStore on top of a key-value store. It
// stands in for the hosted document database; swapping in a real one only
// touches this file.
type KVRemoteStore struct {
	store kvstore.Store
}

func NewKVRemoteStore(store kvstore.Store) *KVRemoteStore {
	return &KVRemoteStore{store: store}
}

func (r *KVRemoteStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	raw, ok, err := r.store.Get(ctx, remoteKeyPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("fetching subscription for %q: %w", userID, err)
	}
	if !ok {
		return nil, nil
	}

	var sub domain.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decoding subscription for %q: %w", userID, err)
	}
	return &sub, nil
}

func (r *KVRemoteStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, remoteKeyPrefix+userID, raw); err != nil {
		return fmt.Errorf("storing subscription for %q: %w", userID, err)
	}
	return nil
}
