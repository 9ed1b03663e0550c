package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/kafka"
)

const serviceSource = "service-booking"

// StayRequest is the body of a create or extend request.
type StayRequest struct {
	// ID is accepted for compatibility and ignored; stays are located by guest, unit and check-in date.
	ID             string `json:"id,omitempty"`
	GuestName      string `json:"guestName" binding:"required"`
	UnitID         string `json:"unitID" binding:"required"`
	CheckInDate    string `json:"checkInDate" binding:"required"`
	NumberOfNights int    `json:"numberOfNights"`
}

// StayDTO is the response representation of a stay.
type StayDTO struct {
	ID             uuid.UUID `json:"id"`
	GuestName      string    `json:"guestName"`
	UnitID         string    `json:"unitID"`
	CheckInDate    time.Time `json:"checkInDate"`
	CheckOutDate   time.Time `json:"checkOutDate"`
	NumberOfNights int       `json:"numberOfNights"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Rejection explains why a request was refused by the booking rules.
type Rejection struct {
	Reason  stayDomain.Reason `json:"reason"`
	Message string            `json:"message"`
}

func newRejection(r stayDomain.Reason) *Rejection {
	return &Rejection{Reason: r, Message: r.Message()}
}

// EventPublisher delivers CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, evt kafka.CloudEvent) error
}

// StayService is the application service orchestrating stay use cases.
type StayService struct {
	repo      stayDomain.Repository
	publisher EventPublisher
	topic     string
	logger    *zap.Logger
}

// NewStayService creates a new StayService. A nil publisher disables event publishing.
func NewStayService(
	repo stayDomain.Repository,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *StayService {
	return &StayService{
		repo:      repo,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// CreateStay admits and stores a new stay. A non-nil Rejection means the rules refused it;
// an error means the request was invalid or the store failed.
func (s *StayService) CreateStay(ctx context.Context, req StayRequest) (*StayDTO, *Rejection, error) {
	c, err := candidateFrom(req)
	if err != nil {
		return nil, nil, err
	}

	var (
		outcome stayDomain.Outcome
		created *stayDomain.Stay
	)
	err = s.repo.Atomic(ctx, lockKeys(c), func(q stayDomain.Queries) error {
		var err error
		outcome, err = stayDomain.CheckAdmission(ctx, q, c)
		if err != nil || !outcome.IsAdmitted() {
			return err
		}

		st, err := stayDomain.NewStay(c.GuestName, c.UnitID, c.CheckIn, c.Nights)
		if err != nil {
			return err
		}
		if err := q.Create(ctx, st); err != nil {
			return err
		}
		created = st
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stay: %w", err)
	}

	if !outcome.IsAdmitted() {
		s.logger.Info("stay rejected",
			zap.String("guest_name", c.GuestName),
			zap.String("unit_id", c.UnitID),
			zap.String("check_in", c.CheckIn.Format(stayDomain.DateLayout)),
			zap.String("reason", outcome.Reason.String()),
		)
		return nil, newRejection(outcome.Reason), nil
	}

	s.logger.Info("stay created",
		zap.String("stay_id", created.ID().String()),
		zap.String("guest_name", created.GuestName()),
		zap.String("unit_id", created.UnitID()),
		zap.Int("nights", created.Nights()),
	)
	s.publishEvent(ctx, EventStayCreated, created.ID().String(), newStayCreatedEvent(created))

	result := toStayDTO(created)
	return &result, nil, nil
}

// ExtendStay grows the night count of an existing stay.
func (s *StayService) ExtendStay(ctx context.Context, req StayRequest) (*StayDTO, *Rejection, error) {
	c, err := candidateFrom(req)
	if err != nil {
		return nil, nil, err
	}

	var (
		decision stayDomain.ExtensionDecision
		updated  *stayDomain.Stay
	)
	err = s.repo.Atomic(ctx, lockKeys(c), func(q stayDomain.Queries) error {
		var err error
		decision, err = stayDomain.CheckExtension(ctx, q, c)
		if err != nil || !decision.IsAdmitted() {
			return err
		}

		updated, err = q.UpdateNights(ctx, decision.Existing.ID(), c.Nights)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extend stay: %w", err)
	}

	if !decision.IsAdmitted() {
		s.logger.Info("stay extension rejected",
			zap.String("guest_name", c.GuestName),
			zap.String("unit_id", c.UnitID),
			zap.String("check_in", c.CheckIn.Format(stayDomain.DateLayout)),
			zap.Int("nights", c.Nights),
			zap.String("reason", decision.Reason.String()),
		)
		return nil, newRejection(decision.Reason), nil
	}

	previous := decision.Existing.Nights()
	s.logger.Info("stay extended",
		zap.String("stay_id", updated.ID().String()),
		zap.Int("previous_nights", previous),
		zap.Int("nights", updated.Nights()),
	)
	s.publishEvent(ctx, EventStayExtended, updated.ID().String(), newStayExtendedEvent(updated, previous))

	result := toStayDTO(updated)
	return &result, nil, nil
}

// GetStay retrieves a stay by ID.
func (s *StayService) GetStay(ctx context.Context, id uuid.UUID) (*StayDTO, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toStayDTO(st)
	return &result, nil
}

// ListStays returns a page of stays ordered by check-in date.
func (s *StayService) ListStays(ctx context.Context, filter stayDomain.ListFilter, page, limit int) ([]StayDTO, int64, error) {
	stays, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stays: %w", err)
	}

	dtos := make([]StayDTO, len(stays))
	for i, st := range stays {
		dtos[i] = toStayDTO(st)
	}
	return dtos, total, nil
}

// PublishRejection reports a refused command on the events topic.
func (s *StayService) PublishRejection(ctx context.Context, commandID, commandType string, req StayRequest, rej *Rejection) {
	s.publishEvent(ctx, EventStayCommandRejected, req.GuestName, StayCommandRejectedEvent{
		CommandID:   commandID,
		CommandType: commandType,
		GuestName:   req.GuestName,
		UnitID:      req.UnitID,
		CheckInDate: req.CheckInDate,
		Nights:      req.NumberOfNights,
		Reason:      string(rej.Reason),
		Message:     rej.Message,
		OccurredAt:  time.Now().UTC(),
	})
}

// --- Helpers ---

func candidateFrom(req StayRequest) (stayDomain.Candidate, error) {
	checkIn, err := stayDomain.ParseDate(req.CheckInDate)
	if err != nil {
		return stayDomain.Candidate{}, err
	}
	return stayDomain.NewCandidate(
		strings.TrimSpace(req.GuestName),
		strings.TrimSpace(req.UnitID),
		checkIn,
		req.NumberOfNights,
	)
}

func lockKeys(c stayDomain.Candidate) stayDomain.LockKeys {
	return stayDomain.LockKeys{GuestName: c.GuestName, UnitID: c.UnitID}
}

func toStayDTO(st *stayDomain.Stay) StayDTO {
	return StayDTO{
		ID:             st.ID(),
		GuestName:      st.GuestName(),
		UnitID:         st.UnitID(),
		CheckInDate:    st.CheckIn(),
		CheckOutDate:   st.CheckOut(),
		NumberOfNights: st.Nights(),
		CreatedAt:      st.CreatedAt(),
		UpdatedAt:      st.UpdatedAt(),
	}
}

func (s *StayService) publishEvent(ctx context.Context, eventType, key string, data interface{}) {
	if s.publisher == nil {
		return
	}

	cloudEvent, err := kafka.NewCloudEvent(serviceSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.publisher.PublishEvent(ctx, s.topic, key, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", s.topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
