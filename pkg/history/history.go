// Package history keeps the per-identity list of completed generations,
// newest first, capped at MaxEntries.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

const MaxEntries = 20

const anonymousKey = "emotionHistory"
const keyPrefix = "emotionHistory_"

type Store struct {
	store kvstore.Store
	log   zerolog.Logger

	Now func() time.Time
}

func NewStore(store kvstore.Store, log zerolog.Logger) *Store {
	return &Store{
		store: store,
		log:   log.With().Str("component", "history").Logger(),
		Now:   time.Now,
	}
}

// Append prepends a new entry and evicts the oldest beyond MaxEntries.
// Returns the stored entry with its generated id.
func (s *Store) Append(ctx context.Context, identity string, userInput string, mode domain.Mode, response string) (*domain.HistoryEntry, error) {
	entries, err := s.List(ctx, identity)
	if err != nil {
		return nil, err
	}

	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserInput: userInput,
		Mode:      mode,
		Response:  response,
		CreatedAt: s.Now(),
	}

	entries = append([]domain.HistoryEntry{entry}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	if err := s.write(ctx, identity, entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the stored entries, newest first.
func (s *Store) List(ctx context.Context, identity string) ([]domain.HistoryEntry, error) {
	raw, ok, err := s.store.Get(ctx, storageKey(identity))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("corrupted history, starting empty")
		return nil, nil
	}
	return entries, nil
}

// Remove deletes a single entry by id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, identity, id string) error {
	entries, err := s.List(ctx, identity)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.write(ctx, identity, kept)
}

// Clear drops the whole list for the identity.
func (s *Store) Clear(ctx context.Context, identity string) error {
	return s.store.Delete(ctx, storageKey(identity))
}

func (s *Store) write(ctx context.Context, identity string, entries []domain.HistoryEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, storageKey(identity), raw)
}

func storageKey(identity string) string {
	if identity == "" {
		return anonymousKey
	}
	return keyPrefix + identity
}
