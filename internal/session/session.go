// Package session keeps per-user conversation state for the chat presenter.
package session

import (
	"context"
	"sync"
	"time"

	"bodari/internal/models"
)

// Store returns (nil, nil) from Get when no state is stored.
type Store interface {
	Get(ctx context.Context, telegramID int64) (*models.UserState, error)
	Save(ctx context.Context, state *models.UserState) error
	Delete(ctx context.Context, telegramID int64) error
}

// MemoryStore is a process-local Store. States are copied in and out so
// callers never share a map with another goroutine.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]*models.UserState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore expires states older than ttl; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		states: make(map[int64]*models.UserState),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, telegramID int64) (*models.UserState, error) {
	s.mu.RLock()
	state, ok := s.states[telegramID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(state.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.states, telegramID)
		s.mu.Unlock()
		return nil, nil
	}
	return clone(state), nil
}

func (s *MemoryStore) Save(_ context.Context, state *models.UserState) error {
	c := clone(state)
	c.UpdatedAt = s.now()
	s.mu.Lock()
	s.states[state.TelegramID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	delete(s.states, telegramID)
	s.mu.Unlock()
	return nil
}

// New returns a state in flow step with an empty scratch map.
func New(telegramID int64, step string) *models.UserState {
	return &models.UserState{
		TelegramID:    telegramID,
		CurrentState:  step,
		TemporaryData: make(map[string]string),
	}
}

func clone(s *models.UserState) *models.UserState {
	c := *s
	c.TemporaryData = make(map[string]string, len(s.TemporaryData))
	for k, v := range s.TemporaryData {
		c.TemporaryData[k] = v
	}
	return &c
}
