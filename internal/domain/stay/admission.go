package stay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Candidate is a stay being evaluated before it is written.
type Candidate struct {
	GuestName string
	UnitID    string
	CheckIn   time.Time
	Nights    int

	// ExcludeID hides the stay being modified from the unit interval queries.
	ExcludeID uuid.UUID
}

// NewCandidate validates and normalizes a stay request.
func NewCandidate(guestName, unitID string, checkIn time.Time, nights int) (Candidate, error) {
	if err := validateFields(guestName, unitID, checkIn, nights); err != nil {
		return Candidate{}, err
	}
	return Candidate{
		GuestName: guestName,
		UnitID:    unitID,
		CheckIn:   NormalizeDate(checkIn),
		Nights:    nights,
	}, nil
}

// CheckOut returns the exclusive end of the candidate stay.
func (c Candidate) CheckOut() time.Time {
	return CheckOutFor(c.CheckIn, c.Nights)
}

// rule inspects the store for one kind of conflict and returns ReasonNone when it passes.
type rule struct {
	name  string
	check func(ctx context.Context, q Queries, c Candidate) (Reason, error)
}

// Order matters: when several rules would fail, the first one decides the reason.
var admissionRules = []rule{
	{name: "same guest same unit", check: sameGuestSameUnit},
	{name: "guest exclusivity", check: guestExclusive},
	{name: "check-in date clash", check: checkInClash},
	{name: "stay duration overlap", check: stayOverlap},
}

var intervalRules = []rule{
	{name: "check-in date clash", check: checkInClash},
	{name: "stay duration overlap", check: stayOverlap},
}

// CheckAdmission decides whether a new stay may be created.
func CheckAdmission(ctx context.Context, q Queries, c Candidate) (Outcome, error) {
	return evaluate(ctx, q, c, admissionRules)
}

func evaluate(ctx context.Context, q Queries, c Candidate, rules []rule) (Outcome, error) {
	for _, r := range rules {
		reason, err := r.check(ctx, q, c)
		if err != nil {
			return Outcome{}, fmt.Errorf("%s: %w", r.name, err)
		}
		if reason != ReasonNone {
			return Rejected(reason), nil
		}
	}
	return Admitted(), nil
}

func sameGuestSameUnit(ctx context.Context, q Queries, c Candidate) (Reason, error) {
	existing, err := q.FindByGuestAndUnit(ctx, c.GuestName, c.UnitID)
	if err != nil {
		return ReasonNone, err
	}
	if len(existing) > 0 {
		return ReasonDuplicateGuestUnit, nil
	}
	return ReasonNone, nil
}

func guestExclusive(ctx context.Context, q Queries, c Candidate) (Reason, error) {
	existing, err := q.FindByGuest(ctx, c.GuestName)
	if err != nil {
		return ReasonNone, err
	}
	if len(existing) > 0 {
		return ReasonGuestAlreadyBooked, nil
	}
	return ReasonNone, nil
}

// checkInClash rejects when the candidate checks in on or before the check-out of a stay
// that started on or before it. The check-out bound is inclusive, so checking in on
// another stay's check-out day counts as a clash.
func checkInClash(ctx context.Context, q Queries, c Candidate) (Reason, error) {
	earlier, err := q.FindByUnitCheckInOnOrBefore(ctx, c.UnitID, c.CheckIn, c.ExcludeID)
	if err != nil {
		return ReasonNone, err
	}
	for _, s := range earlier {
		if !c.CheckIn.After(s.CheckOut()) {
			return ReasonUnitOccupied, nil
		}
	}
	return ReasonNone, nil
}

// stayOverlap rejects when another stay checks in within [candidate check-in, candidate check-out].
// Both ends are inclusive, so a stay starting on the candidate's check-out day also counts.
func stayOverlap(ctx context.Context, q Queries, c Candidate) (Reason, error) {
	later, err := q.FindByUnitCheckInInRange(ctx, c.UnitID, c.CheckIn, c.CheckOut(), c.ExcludeID)
	if err != nil {
		return ReasonNone, err
	}
	if len(later) > 0 {
		return ReasonUnitOccupied, nil
	}
	return ReasonNone, nil
}
