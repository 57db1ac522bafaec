// Package favorites owns the list of bookmarked locations.
//
// The list is stored as one JSON array, newest first, under a single key of a kv.Store.
// Every operation reads the list fresh from the store. Failures are logged and mapped to
// safe defaults (empty list, false, no-op); they never reach the caller.
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/kv"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// DefaultKey is the storage key of the favorites list.
const DefaultKey = "FAVORITES_V1"

// Store provides add/remove/query/list over the persisted favorites list.
//
// Read-modify-write cycles are serialized by mu, so concurrent Add/Remove calls on one
// Store do not lose each other's writes. Separate processes sharing a backend are still
// last-write-wins at the key.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	logger *zap.Logger
}

// New returns a Store persisting under key (DefaultKey when empty).
func New(backend kv.Store, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: backend, key: key, logger: logger}
}

// List returns the favorites, newest first. Empty on absent key, bad data or a read failure.
func (s *Store) List(ctx context.Context) []models.Favorite {
	list, err := s.load(ctx)
	if err != nil {
		s.fail(ctx, "list", err)
		return []models.Favorite{}
	}
	s.ok("list", len(list))
	return list
}

// Add prepends fav unless an entry with the same identity exists.
func (s *Store) Add(ctx context.Context, fav models.Favorite) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.fail(ctx, "add", err)
		return
	}
	if indexOf(list, fav) >= 0 {
		s.ok("add", len(list))
		return
	}
	list = append([]models.Favorite{fav}, list...)
	if err := s.save(ctx, list); err != nil {
		s.fail(ctx, "add", err)
		return
	}
	s.ok("add", len(list))
}

// Remove drops every entry matching fav's identity and writes the list back,
// even when nothing matched.
func (s *Store) Remove(ctx context.Context, fav models.Favorite) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.fail(ctx, "remove", err)
		return
	}
	kept := make([]models.Favorite, 0, len(list))
	for _, f := range list {
		if !f.Same(fav) {
			kept = append(kept, f)
		}
	}
	if err := s.save(ctx, kept); err != nil {
		s.fail(ctx, "remove", err)
		return
	}
	s.ok("remove", len(kept))
}

// Toggle removes fav when it is bookmarked and adds it otherwise, as one read-modify-write
// cycle. It returns the new status; on a write failure the status is unchanged.
func (s *Store) Toggle(ctx context.Context, fav models.Favorite) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.fail(ctx, "toggle", err)
		return false
	}
	was := indexOf(list, fav) >= 0
	next := make([]models.Favorite, 0, len(list)+1)
	if !was {
		next = append(next, fav)
	}
	for _, f := range list {
		if !f.Same(fav) {
			next = append(next, f)
		}
	}
	if err := s.save(ctx, next); err != nil {
		s.fail(ctx, "toggle", err)
		return was
	}
	s.ok("toggle", len(next))
	return !was
}

// Contains reports whether fav is bookmarked. False on any read failure.
func (s *Store) Contains(ctx context.Context, fav models.Favorite) bool {
	list, err := s.load(ctx)
	if err != nil {
		s.fail(ctx, "contains", err)
		return false
	}
	s.ok("contains", len(list))
	return indexOf(list, fav) >= 0
}

func (s *Store) load(ctx context.Context) ([]models.Favorite, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []models.Favorite{}, nil
	}
	var list []models.Favorite
	if err := json.Unmarshal(raw, &list); err != nil {
		// Unparseable data reads as empty; the next Add or Remove overwrites it.
		observability.FavoritesOperationsTotal.WithLabelValues("decode", "error").Inc()
		observability.LoggerFromContext(ctx, s.logger).Warn("discarding unparseable favorites",
			zap.String("key", s.key), zap.Error(err))
		return []models.Favorite{}, nil
	}
	if list == nil {
		list = []models.Favorite{}
	}
	return list, nil
}

func (s *Store) save(ctx context.Context, list []models.Favorite) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	return nil
}

func (s *Store) ok(op string, n int) {
	observability.FavoritesOperationsTotal.WithLabelValues(op, "ok").Inc()
	observability.FavoritesCount.Set(float64(n))
}

func (s *Store) fail(ctx context.Context, op string, err error) {
	observability.FavoritesOperationsTotal.WithLabelValues(op, "error").Inc()
	observability.LoggerFromContext(ctx, s.logger).Warn("favorites operation failed",
		zap.String("op", op), zap.String("key", s.key), zap.Error(err))
}

func indexOf(list []models.Favorite, fav models.Favorite) int {
	for i, f := range list {
		if f.Same(fav) {
			return i
		}
	}
	return -1
}
