package stay

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queries is the store surface the checkers read from and the service writes through.
// Date bounds are inclusive; an excludeID of uuid.Nil excludes nothing.
type Queries interface {
	// FindByGuestAndUnit returns stays where guest == guestName AND unit == unitID.
	FindByGuestAndUnit(ctx context.Context, guestName, unitID string) ([]*Stay, error)

	// FindByGuest returns every stay held by guestName, on any unit.
	FindByGuest(ctx context.Context, guestName string) ([]*Stay, error)

	// FindByUnitCheckInOnOrBefore returns stays on unitID with checkIn <= date.
	FindByUnitCheckInOnOrBefore(ctx context.Context, unitID string, date time.Time, excludeID uuid.UUID) ([]*Stay, error)

	// FindByUnitCheckInInRange returns stays on unitID with lo <= checkIn <= hi.
	FindByUnitCheckInInRange(ctx context.Context, unitID string, lo, hi time.Time, excludeID uuid.UUID) ([]*Stay, error)

	// FindOne returns the stay identified by guest, unit and check-in date, or nil when absent.
	FindOne(ctx context.Context, guestName, unitID string, checkIn time.Time) (*Stay, error)

	// Create persists a new stay and assigns its ID.
	Create(ctx context.Context, stay *Stay) error

	// UpdateNights sets the night count of an existing stay and returns the updated record.
	UpdateNights(ctx context.Context, id uuid.UUID, nights int) (*Stay, error)
}

// LockKeys names the guest and unit a write must serialize on.
type LockKeys struct {
	GuestName string
	UnitID    string
}

// Strings returns the lock names. Every holder acquires them in this order, so two
// requests can never wait on each other's second lock.
func (k LockKeys) Strings() []string {
	return []string{"guest:" + k.GuestName, "unit:" + k.UnitID}
}

// ListFilter narrows List results; empty fields match everything.
type ListFilter struct {
	GuestName string
	UnitID    string
}

// Repository is the persistence contract for stays.
type Repository interface {
	Queries

	// Atomic runs fn with Queries bound to one unit of work that holds the locks named by keys.
	// Reads and writes made through the argument commit together or not at all.
	Atomic(ctx context.Context, keys LockKeys, fn func(q Queries) error) error

	// FindByID retrieves a stay by identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Stay, error)

	// List returns stays ordered by check-in date with pagination.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Stay, int64, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
