package application

import (
	"time"

	"github.com/google/uuid"

	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
)

// Event types published on the stay events topic.
const (
	EventStayCreated         = "stay.created"
	EventStayExtended        = "stay.extended"
	EventStayCommandRejected = "stay.command.rejected"
)

// StayCreatedEvent is published after a stay is admitted.
type StayCreatedEvent struct {
	StayID       uuid.UUID `json:"stayId"`
	GuestName    string    `json:"guestName"`
	UnitID       string    `json:"unitID"`
	CheckInDate  string    `json:"checkInDate"`
	CheckOutDate string    `json:"checkOutDate"`
	Nights       int       `json:"numberOfNights"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// StayExtendedEvent is published after a stay's night count grows.
type StayExtendedEvent struct {
	StayID         uuid.UUID `json:"stayId"`
	GuestName      string    `json:"guestName"`
	UnitID         string    `json:"unitID"`
	CheckInDate    string    `json:"checkInDate"`
	CheckOutDate   string    `json:"checkOutDate"`
	PreviousNights int       `json:"previousNights"`
	Nights         int       `json:"numberOfNights"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// StayCommandRejectedEvent reports a command from the commands topic that the rules refused.
type StayCommandRejectedEvent struct {
	CommandID   string    `json:"commandId"`
	CommandType string    `json:"commandType"`
	GuestName   string    `json:"guestName"`
	UnitID      string    `json:"unitID"`
	CheckInDate string    `json:"checkInDate"`
	Nights      int       `json:"numberOfNights"`
	Reason      string    `json:"reason"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func newStayCreatedEvent(st *stayDomain.Stay) StayCreatedEvent {
	return StayCreatedEvent{
		StayID:       st.ID(),
		GuestName:    st.GuestName(),
		UnitID:       st.UnitID(),
		CheckInDate:  st.CheckIn().Format(stayDomain.DateLayout),
		CheckOutDate: st.CheckOut().Format(stayDomain.DateLayout),
		Nights:       st.Nights(),
		OccurredAt:   time.Now().UTC(),
	}
}

func newStayExtendedEvent(st *stayDomain.Stay, previousNights int) StayExtendedEvent {
	return StayExtendedEvent{
		StayID:         st.ID(),
		GuestName:      st.GuestName(),
		UnitID:         st.UnitID(),
		CheckInDate:    st.CheckIn().Format(stayDomain.DateLayout),
		CheckOutDate:   st.CheckOut().Format(stayDomain.DateLayout),
		PreviousNights: previousNights,
		Nights:         st.Nights(),
		OccurredAt:     time.Now().UTC(),
	}
}
