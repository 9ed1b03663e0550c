package stay

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// fakeQueries applies the documented filter bounds over a slice and records which
// queries ran, so tests can observe short-circuiting.
type fakeQueries struct {
	stays []*Stay
	calls []string
	err   error
}

func (f *fakeQueries) add(guest, unit string, checkIn time.Time, nights int) *Stay {
	s := ReconstructStay(uuid.New(), guest, unit, checkIn, nights, time.Now(), time.Now())
	f.stays = append(f.stays, s)
	return s
}

func (f *fakeQueries) FindByGuestAndUnit(_ context.Context, guestName, unitID string) ([]*Stay, error) {
	f.calls = append(f.calls, "FindByGuestAndUnit")
	if f.err != nil {
		return nil, f.err
	}
	var out []*Stay
	for _, s := range f.stays {
		if s.GuestName() == guestName && s.UnitID() == unitID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQueries) FindByGuest(_ context.Context, guestName string) ([]*Stay, error) {
	f.calls = append(f.calls, "FindByGuest")
	if f.err != nil {
		return nil, f.err
	}
	var out []*Stay
	for _, s := range f.stays {
		if s.GuestName() == guestName {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQueries) FindByUnitCheckInOnOrBefore(_ context.Context, unitID string, date time.Time, excludeID uuid.UUID) ([]*Stay, error) {
	f.calls = append(f.calls, "FindByUnitCheckInOnOrBefore")
	if f.err != nil {
		return nil, f.err
	}
	var out []*Stay
	for _, s := range f.stays {
		if s.UnitID() == unitID && s.ID() != excludeID && !s.CheckIn().After(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQueries) FindByUnitCheckInInRange(_ context.Context, unitID string, lo, hi time.Time, excludeID uuid.UUID) ([]*Stay, error) {
	f.calls = append(f.calls, "FindByUnitCheckInInRange")
	if f.err != nil {
		return nil, f.err
	}
	var out []*Stay
	for _, s := range f.stays {
		if s.UnitID() == unitID && s.ID() != excludeID && !s.CheckIn().Before(lo) && !s.CheckIn().After(hi) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQueries) FindOne(_ context.Context, guestName, unitID string, checkIn time.Time) (*Stay, error) {
	f.calls = append(f.calls, "FindOne")
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.stays {
		if s.GuestName() == guestName && s.UnitID() == unitID && s.CheckIn().Equal(NormalizeDate(checkIn)) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeQueries) Create(_ context.Context, s *Stay) error {
	s.AssignID(uuid.New())
	f.stays = append(f.stays, s)
	return nil
}

func (f *fakeQueries) UpdateNights(_ context.Context, id uuid.UUID, nights int) (*Stay, error) {
	for i, s := range f.stays {
		if s.ID() == id {
			f.stays[i] = s.WithNights(nights)
			return f.stays[i], nil
		}
	}
	return nil, nil
}
