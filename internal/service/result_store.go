package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

type storedResult struct {
	result   models.TimetableResult
	storedAt time.Time
}

// resultStore keeps recent run results in memory so reads and exports do not depend on the database.
type resultStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]storedResult
	now   func() time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	return &resultStore{
		ttl:   ttl,
		items: make(map[string]storedResult),
		now:   time.Now,
	}
}

func (s *resultStore) Save(result models.TimetableResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[result.Run.ID] = storedResult{result: result, storedAt: s.now()}
}

func (s *resultStore) Get(id string) (models.TimetableResult, bool) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.TimetableResult{}, false
	}
	if s.now().Sub(item.storedAt) > s.ttl {
		s.Delete(id)
		return models.TimetableResult{}, false
	}
	return item.result, true
}

// Update applies fn to a stored result in place. It reports false when the run is unknown.
func (s *resultStore) Update(id string, fn func(*models.TimetableResult)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&item.result)
	s.items[id] = item
	return true
}

func (s *resultStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed.
func (s *resultStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, item := range s.items {
		if s.now().Sub(item.storedAt) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}
