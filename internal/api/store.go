package api

import (
	"sync"

	"github.com/goccy/go-json"
)

// ScheduleStore keeps encoded plans by id. Plans are stored as JSON so a
// stored schedule cannot change after it was returned.
type ScheduleStore struct {
	mu    sync.Mutex
	plans map[string][]byte
	limit int
	order []string
}

// NewScheduleStore keeps at most limit plans, evicting the oldest. A limit
// of zero or less keeps everything.
func NewScheduleStore(limit int) *ScheduleStore {
	return &ScheduleStore{
		plans: make(map[string][]byte),
		limit: limit,
	}
}

func (s *ScheduleStore) Save(resp ScheduleResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.plans[resp.ID] = b
	for s.limit > 0 && len(s.order) > s.limit {
		delete(s.plans, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *ScheduleStore) Get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.plans[id]
	return b, ok
}

func (s *ScheduleStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return false
	}
	delete(s.plans, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *ScheduleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}
