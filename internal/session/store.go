package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quiz-widget/internal/quiz"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session lock already held")
)

// Record is the stored form of a live session.
type Record struct {
	ID        uuid.UUID  `json:"id"`
	State     quiz.State `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store keeps live session state for as long as the session's view exists.
// Lock serializes state transitions per session; the returned func releases it.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id uuid.UUID) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Lock(ctx context.Context, id uuid.UUID) (func() error, error)
}

// Expirer is implemented by stores that need explicit idle eviction.
type Expirer interface {
	Expire(ctx context.Context, idleSince time.Time) ([]uuid.UUID, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	locks   map[uuid.UUID]*sync.Mutex
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Expirer = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]Record),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.State = copyState(rec.State)
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	rec.State = copyState(rec.State)
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.records, id)
	delete(m.locks, id)
	return nil
}

func (m *MemoryStore) Lock(_ context.Context, id uuid.UUID) (func() error, error) {
	m.mu.Lock()
	if _, exists := m.records[id]; !exists {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()

	l.Lock()
	return func() error {
		l.Unlock()
		return nil
	}, nil
}

// Expire drops sessions not updated since idleSince and returns their IDs.
// Sessions whose lock is held are in use and left for the next sweep.
func (m *MemoryStore) Expire(_ context.Context, idleSince time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []uuid.UUID
	for id, rec := range m.records {
		if !rec.UpdatedAt.Before(idleSince) {
			continue
		}
		if l, ok := m.locks[id]; ok {
			if !l.TryLock() {
				continue
			}
			l.Unlock()
		}
		expired = append(expired, id)
		delete(m.records, id)
		delete(m.locks, id)
	}
	return expired, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func copyState(st quiz.State) quiz.State {
	if st.Selected != nil {
		sel := *st.Selected
		st.Selected = &sel
	}
	return st
}
