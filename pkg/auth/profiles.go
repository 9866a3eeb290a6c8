package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

const profileKeyPrefix = "users_"

// ProfileStore persists the user profile documents upserted on every
// sign-in. Upserts merge: fields the new login does not carry keep their
// stored value.
type ProfileStore struct {
	store kvstore.Store
}

func NewProfileStore(store kvstore.Store) *ProfileStore {
	return &ProfileStore{store: store}
}

func (s *ProfileStore) Get(ctx context.Context, uid string) (*domain.UserProfile, error) {
	raw, ok, err := s.store.Get(ctx, profileKeyPrefix+uid)
	if err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", uid, err)
	}
	if !ok {
		return nil, nil
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decoding profile %q: %w", uid, err)
	}
	return &profile, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, profile domain.UserProfile) error {
	existing, err := s.Get(ctx, profile.UID)
	if err != nil {
		return err
	}
	if existing != nil {
		if profile.Email == "" {
			profile.Email = existing.Email
		}
		if profile.DisplayName == "" {
			profile.DisplayName = existing.DisplayName
		}
		if profile.PhotoURL == "" {
			profile.PhotoURL = existing.PhotoURL
		}
	}
	if profile.LastLogin.IsZero() {
		profile.LastLogin = time.Now()
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, profileKeyPrefix+profile.UID, raw); err != nil {
		return fmt.Errorf("storing profile %q: %w", profile.UID, err)
	}
	return nil
}
