package portfolio

import (
	"context"
	"sort"
	"sync"

	"github.com/Alias1177/SignalEngine/models"
)

// Store persists trades. Get returns models.ErrTradeNotFound for unknown IDs.
type Store interface {
	Save(ctx context.Context, trade *models.Trade) error
	Get(ctx context.Context, id string) (*models.Trade, error)
	List(ctx context.Context) ([]models.Trade, error)
}

// MemoryStore keeps trades in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[string]models.Trade
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trades: make(map[string]models.Trade)}
}

func (s *MemoryStore) Save(_ context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[trade.ID] = *trade
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, models.ErrTradeNotFound
	}
	return &t, nil
}

// List returns trades ordered by open time
func (s *MemoryStore) List(_ context.Context) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}
