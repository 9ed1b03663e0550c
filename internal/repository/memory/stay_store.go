// Package memory holds an in-process stay store for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/apperr"
)

// StayStore keeps stays in a map. Atomic serializes every unit of work behind one mutex,
// which is coarser than per-key locking but enough for a single process.
type StayStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	items map[uuid.UUID]*stayDomain.Stay
}

// NewStayStore builds an empty store.
func NewStayStore() *StayStore {
	return &StayStore{items: make(map[uuid.UUID]*stayDomain.Stay)}
}

// Atomic runs fn while holding the store-wide write lock.
func (s *StayStore) Atomic(ctx context.Context, _ stayDomain.LockKeys, fn func(q stayDomain.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

// FindByGuestAndUnit returns stays matching both guest and unit.
func (s *StayStore) FindByGuestAndUnit(_ context.Context, guestName, unitID string) ([]*stayDomain.Stay, error) {
	return s.filter(func(st *stayDomain.Stay) bool {
		return st.GuestName() == guestName && st.UnitID() == unitID
	}), nil
}

// FindByGuest returns every stay held by the guest.
func (s *StayStore) FindByGuest(_ context.Context, guestName string) ([]*stayDomain.Stay, error) {
	return s.filter(func(st *stayDomain.Stay) bool {
		return st.GuestName() == guestName
	}), nil
}

// FindByUnitCheckInOnOrBefore returns stays on the unit with checkIn <= date.
func (s *StayStore) FindByUnitCheckInOnOrBefore(_ context.Context, unitID string, date time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	return s.filter(func(st *stayDomain.Stay) bool {
		return st.UnitID() == unitID && st.ID() != excludeID && !st.CheckIn().After(date)
	}), nil
}

// FindByUnitCheckInInRange returns stays on the unit with lo <= checkIn <= hi.
func (s *StayStore) FindByUnitCheckInInRange(_ context.Context, unitID string, lo, hi time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	return s.filter(func(st *stayDomain.Stay) bool {
		return st.UnitID() == unitID && st.ID() != excludeID &&
			!st.CheckIn().Before(lo) && !st.CheckIn().After(hi)
	}), nil
}

// FindOne returns the stay with the given guest, unit and check-in date, or nil.
func (s *StayStore) FindOne(_ context.Context, guestName, unitID string, checkIn time.Time) (*stayDomain.Stay, error) {
	day := stayDomain.NormalizeDate(checkIn)
	matches := s.filter(func(st *stayDomain.Stay) bool {
		return st.GuestName() == guestName && st.UnitID() == unitID && st.CheckIn().Equal(day)
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// Create stores a new stay, assigning its ID.
func (s *StayStore) Create(_ context.Context, st *stayDomain.Stay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.GuestName() == st.GuestName() {
			return apperr.NewConflictError("a stay for this guest already exists")
		}
	}
	st.AssignID(uuid.New())
	s.items[st.ID()] = st.Clone()
	return nil
}

// UpdateNights replaces the night count of an existing stay.
func (s *StayStore) UpdateNights(_ context.Context, id uuid.UUID, nights int) (*stayDomain.Stay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return nil, apperr.NewNotFoundError("Stay", id.String())
	}
	updated := existing.WithNights(nights)
	s.items[id] = updated
	return updated.Clone(), nil
}

// FindByID retrieves a stay by identifier.
func (s *StayStore) FindByID(_ context.Context, id uuid.UUID) (*stayDomain.Stay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.items[id]
	if !ok {
		return nil, apperr.NewNotFoundError("Stay", id.String())
	}
	return st.Clone(), nil
}

// List returns stays ordered by check-in date, then unit.
func (s *StayStore) List(_ context.Context, filter stayDomain.ListFilter, page, limit int) ([]*stayDomain.Stay, int64, error) {
	matches := s.filter(func(st *stayDomain.Stay) bool {
		if filter.GuestName != "" && st.GuestName() != filter.GuestName {
			return false
		}
		if filter.UnitID != "" && st.UnitID() != filter.UnitID {
			return false
		}
		return true
	})

	total := int64(len(matches))
	offset := (page - 1) * limit
	if offset >= len(matches) {
		return []*stayDomain.Stay{}, total, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], total, nil
}

// Ping always succeeds.
func (s *StayStore) Ping(context.Context) error { return nil }

// filter returns clones of matching stays sorted by check-in, unit, then creation time.
func (s *StayStore) filter(match func(*stayDomain.Stay) bool) []*stayDomain.Stay {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*stayDomain.Stay, 0)
	for _, st := range s.items {
		if match(st) {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckIn().Equal(out[j].CheckIn()) {
			return out[i].CheckIn().Before(out[j].CheckIn())
		}
		if out[i].UnitID() != out[j].UnitID() {
			return out[i].UnitID() < out[j].UnitID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}
