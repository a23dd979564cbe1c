package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/repo"
)

// DefaultCapacity bounds how many verdicts are kept per store.
const DefaultCapacity = 1000

type Store struct {
	mu       sync.RWMutex
	capacity int
	nextID   int64
	verdicts []domain.VerdictRecord // oldest first
	alerts   map[string]repo.AlertRecord
}

func New() *Store {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		verdicts: make([]domain.VerdictRecord, 0, min(capacity, 128)),
		alerts:   make(map[string]repo.AlertRecord),
	}
}

var (
	_ repo.VerdictStore = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

func (m *Store) Append(ctx context.Context, r *domain.VerdictRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	if len(m.verdicts) == m.capacity {
		copy(m.verdicts, m.verdicts[1:])
		m.verdicts = m.verdicts[:len(m.verdicts)-1]
	}
	m.verdicts = append(m.verdicts, *r)
	return nil
}

func (m *Store) Latest(ctx context.Context, probe string) (*domain.VerdictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.verdicts) - 1; i >= 0; i-- {
		if m.verdicts[i].Probe == probe {
			r := m.verdicts[i]
			return &r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *Store) Recent(ctx context.Context, probe string, limit int) ([]domain.VerdictRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.VerdictRecord, 0, min(limit, len(m.verdicts)))
	for i := len(m.verdicts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.verdicts[i].Probe == probe {
			out = append(out, m.verdicts[i])
		}
	}
	return out, nil
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, probe string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[probe]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, probe string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[probe] = repo.AlertRecord{Probe: probe, LastState: lastState, LastSentAt: ts}
	return nil
}
