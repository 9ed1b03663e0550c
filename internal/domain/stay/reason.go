package stay

// Reason identifies why a stay request was refused. The zero value means no rejection.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonDuplicateGuestUnit Reason = "duplicate_guest_unit"
	ReasonGuestAlreadyBooked Reason = "guest_already_booked"
	ReasonUnitOccupied       Reason = "unit_occupied"
	ReasonNotFound           Reason = "not_found"
	ReasonCannotShorten      Reason = "cannot_shorten"
)

// These strings are part of the public API and must not change.
var reasonMessages = map[Reason]string{
	ReasonDuplicateGuestUnit: "The given guest name cannot book the same unit multiple times",
	ReasonGuestAlreadyBooked: "The same guest cannot be in multiple units at the same time",
	ReasonUnitOccupied:       "For the given check-in date, the unit is already occupied",
	ReasonNotFound:           "This booking does not exist.",
	ReasonCannotShorten:      "This booking cannot be shortened.",
}

// Message returns the client-facing text for the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// String returns the reason code.
func (r Reason) String() string {
	return string(r)
}

// Outcome is the result of evaluating a stay request.
type Outcome struct {
	Reason Reason
}

// Admitted returns an outcome with no rejection.
func Admitted() Outcome { return Outcome{} }

// Rejected returns an outcome carrying reason.
func Rejected(reason Reason) Outcome { return Outcome{Reason: reason} }

// IsAdmitted reports whether every rule passed.
func (o Outcome) IsAdmitted() bool { return o.Reason == ReasonNone }
