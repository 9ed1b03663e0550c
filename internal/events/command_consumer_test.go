package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/apperr"
	"github.com/unitstay/service-booking/internal/platform/kafka"
)

type fakeCommands struct {
	created   []application.StayRequest
	extended  []application.StayRequest
	rejected  []string
	rejection *application.Rejection
	err       error
}

func (f *fakeCommands) CreateStay(_ context.Context, req application.StayRequest) (*application.StayDTO, *application.Rejection, error) {
	f.created = append(f.created, req)
	return f.result()
}

func (f *fakeCommands) ExtendStay(_ context.Context, req application.StayRequest) (*application.StayDTO, *application.Rejection, error) {
	f.extended = append(f.extended, req)
	return f.result()
}

func (f *fakeCommands) PublishRejection(_ context.Context, commandID, _ string, _ application.StayRequest, rej *application.Rejection) {
	f.rejected = append(f.rejected, commandID+":"+string(rej.Reason))
}

func (f *fakeCommands) result() (*application.StayDTO, *application.Rejection, error) {
	if f.err != nil || f.rejection != nil {
		return nil, f.rejection, f.err
	}
	return &application.StayDTO{ID: uuid.New()}, nil, nil
}

func newConsumer(svc StayCommands) *StayCommandConsumer {
	return &StayCommandConsumer{service: svc, logger: zap.NewNop()}
}

func commandMessage(t *testing.T, eventType string, data interface{}) (kafkago.Message, string) {
	t.Helper()
	evt, err := kafka.NewCloudEvent("test", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}, evt.ID
}

var sampleRequest = application.StayRequest{
	GuestName:      "GuestA",
	UnitID:         "unit1",
	CheckInDate:    "2026-03-10",
	NumberOfNights: 5,
}

func TestHandleMessage_RoutesByType(t *testing.T) {
	svc := &fakeCommands{}
	c := newConsumer(svc)

	msg, _ := commandMessage(t, CommandCreateStay, sampleRequest)
	require.NoError(t, c.handleMessage(context.Background(), msg))
	msg, _ = commandMessage(t, CommandExtendStay, sampleRequest)
	require.NoError(t, c.handleMessage(context.Background(), msg))

	assert.Equal(t, []application.StayRequest{sampleRequest}, svc.created)
	assert.Equal(t, []application.StayRequest{sampleRequest}, svc.extended)
	assert.Empty(t, svc.rejected)
}

func TestHandleMessage_PublishesRejection(t *testing.T) {
	svc := &fakeCommands{rejection: &application.Rejection{Reason: stayDomain.ReasonUnitOccupied}}
	c := newConsumer(svc)

	msg, id := commandMessage(t, CommandCreateStay, sampleRequest)
	require.NoError(t, c.handleMessage(context.Background(), msg))

	assert.Equal(t, []string{id + ":unit_occupied"}, svc.rejected)
}

func TestHandleMessage_SkipsMalformedInput(t *testing.T) {
	svc := &fakeCommands{}
	c := newConsumer(svc)

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("{")}))

	msg, _ := commandMessage(t, CommandCreateStay, "not an object")
	assert.NoError(t, c.handleMessage(context.Background(), msg))

	msg, _ = commandMessage(t, "stay.cancel", sampleRequest)
	assert.NoError(t, c.handleMessage(context.Background(), msg))

	assert.Empty(t, svc.created)
}

func TestHandleMessage_DropsInvalidCommand(t *testing.T) {
	svc := &fakeCommands{err: apperr.NewValidationError("numberOfNights must be at least 1")}
	c := newConsumer(svc)

	msg, _ := commandMessage(t, CommandCreateStay, sampleRequest)
	assert.NoError(t, c.handleMessage(context.Background(), msg))
}

func TestHandleMessage_StoreFaultIsRetried(t *testing.T) {
	svc := &fakeCommands{err: errors.New("connection reset")}
	c := newConsumer(svc)

	msg, _ := commandMessage(t, CommandExtendStay, sampleRequest)
	assert.Error(t, c.handleMessage(context.Background(), msg))
}
