package stay

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unitstay/service-booking/internal/platform/apperr"
)

// MaxNights bounds a single stay so its check-out stays representable in every store.
const MaxNights = 3650

// Stay is the aggregate root for a single guest/unit reservation.
// Only the night count changes after creation.
type Stay struct {
	id        uuid.UUID
	guestName string
	unitID    string
	checkIn   time.Time
	nights    int
	createdAt time.Time
	updatedAt time.Time
}

// NewStay creates a stay that has not been persisted yet; its ID is assigned by the store.
func NewStay(guestName, unitID string, checkIn time.Time, nights int) (*Stay, error) {
	if err := validateFields(guestName, unitID, checkIn, nights); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Stay{
		guestName: guestName,
		unitID:    unitID,
		checkIn:   NormalizeDate(checkIn),
		nights:    nights,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructStay rebuilds a Stay from persistence data (no validation).
func ReconstructStay(
	id uuid.UUID,
	guestName string,
	unitID string,
	checkIn time.Time,
	nights int,
	createdAt time.Time,
	updatedAt time.Time,
) *Stay {
	return &Stay{
		id:        id,
		guestName: guestName,
		unitID:    unitID,
		checkIn:   NormalizeDate(checkIn),
		nights:    nights,
		createdAt: createdAt.UTC(),
		updatedAt: updatedAt.UTC(),
	}
}

// --- Getters ---

// ID returns the stay identifier, or uuid.Nil before creation.
func (s *Stay) ID() uuid.UUID { return s.id }

// GuestName returns the guest holding the stay.
func (s *Stay) GuestName() string { return s.guestName }

// UnitID returns the booked unit.
func (s *Stay) UnitID() string { return s.unitID }

// CheckIn returns the check-in date at midnight UTC.
func (s *Stay) CheckIn() time.Time { return s.checkIn }

// Nights returns the number of nights booked.
func (s *Stay) Nights() int { return s.nights }

// CheckOut returns the exclusive end of the stay.
func (s *Stay) CheckOut() time.Time { return CheckOutFor(s.checkIn, s.nights) }

// CreatedAt returns the creation timestamp.
func (s *Stay) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (s *Stay) UpdatedAt() time.Time { return s.updatedAt }

// --- Behavior ---

// AssignID sets the identifier on first persistence. It is a no-op once an ID exists.
func (s *Stay) AssignID(id uuid.UUID) {
	if s.id == uuid.Nil {
		s.id = id
	}
}

// Clone returns an independent copy.
func (s *Stay) Clone() *Stay {
	c := *s
	return &c
}

// WithNights returns a copy carrying the new night count and a fresh update time.
func (s *Stay) WithNights(nights int) *Stay {
	c := s.Clone()
	c.nights = nights
	c.updatedAt = time.Now().UTC()
	return c
}

// CheckOutFor computes the exclusive end instant of a stay.
func CheckOutFor(checkIn time.Time, nights int) time.Time {
	return NormalizeDate(checkIn).AddDate(0, 0, nights)
}

func validateFields(guestName, unitID string, checkIn time.Time, nights int) error {
	if strings.TrimSpace(guestName) == "" {
		return apperr.NewValidationError("guestName is required")
	}
	if strings.TrimSpace(unitID) == "" {
		return apperr.NewValidationError("unitID is required")
	}
	if checkIn.IsZero() {
		return apperr.NewValidationError("checkInDate is required")
	}
	if nights < 1 {
		return apperr.NewValidationError("numberOfNights must be at least 1")
	}
	if nights > MaxNights {
		return apperr.NewValidationError(fmt.Sprintf("numberOfNights must be at most %d", MaxNights))
	}
	return nil
}
