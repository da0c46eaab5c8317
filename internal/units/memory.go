package units

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps units in process memory. It backs single-process runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	units   map[string]*Unit
	credits map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		units:   map[string]*Unit{},
		credits: map[string]map[string]struct{}{},
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, u Unit) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.units[u.ID]; ok {
		return false, nil
	}
	now := s.now().UTC()
	stored := clone(u)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.units[u.ID] = &stored
	return true, nil
}

func (s *MemoryStore) ConditionalUpdate(ctx context.Context, id string, m Mutation, cond Condition) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return Unit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[id]
	if !ok {
		return Unit{}, ErrNotFound
	}
	if !cond.Guarded(m).Matches(u.Status) {
		return Unit{}, ErrConditionFailed
	}
	if m.SegmentCount != nil && *m.SegmentCount < u.SegmentsProcessed {
		return Unit{}, fmt.Errorf("units: segment_count %d below segments_processed %d", *m.SegmentCount, u.SegmentsProcessed)
	}

	if m.Status != "" {
		u.Status = m.Status
	}
	if m.SegmentCount != nil {
		u.SegmentCount = Int64(*m.SegmentCount)
	}
	if m.LastError != nil {
		u.LastError = *m.LastError
	}
	u.UpdatedAt = s.now().UTC()
	return clone(*u), nil
}

func (s *MemoryStore) Increment(ctx context.Context, id string, inc Increment) (int64, bool, error) {
	if !inc.Field.Valid() {
		return 0, false, fmt.Errorf("units: invalid field %q", inc.Field)
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[id]
	if !ok {
		return 0, false, ErrNotFound
	}

	cur := fieldValue(u, inc.Field)
	if inc.DedupeKey != "" {
		if _, seen := s.credits[id][inc.DedupeKey]; seen {
			return cur, false, nil
		}
	}

	next, ok := inc.Apply(cur, u.SegmentCount)
	if !ok {
		return cur, false, nil
	}

	switch inc.Field {
	case FieldSegmentsProcessed:
		u.SegmentsProcessed = next
	case FieldRemaining:
		u.Remaining = Int64(next)
	case FieldFailedMembers:
		u.FailedMembers = next
	}
	u.UpdatedAt = s.now().UTC()

	if inc.DedupeKey != "" {
		if s.credits[id] == nil {
			s.credits[id] = map[string]struct{}{}
		}
		s.credits[id][inc.DedupeKey] = struct{}{}
	}
	return next, true, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return Unit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[id]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return clone(*u), nil
}

func fieldValue(u *Unit, f Field) int64 {
	switch f {
	case FieldSegmentsProcessed:
		return u.SegmentsProcessed
	case FieldRemaining:
		if u.Remaining == nil {
			return 0
		}
		return *u.Remaining
	case FieldFailedMembers:
		return u.FailedMembers
	}
	return 0
}

// clone copies u so callers never alias the stored pointers.
func clone(u Unit) Unit {
	if u.SegmentCount != nil {
		u.SegmentCount = Int64(*u.SegmentCount)
	}
	if u.Remaining != nil {
		u.Remaining = Int64(*u.Remaining)
	}
	return u
}
