package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	"github.com/unitstay/service-booking/internal/platform/apperr"
	"github.com/unitstay/service-booking/internal/platform/kafka"
)

// Command types accepted on the stay commands topic.
const (
	CommandCreateStay = "stay.create"
	CommandExtendStay = "stay.extend"
)

// StayCommands is the part of the stay service the consumer drives.
type StayCommands interface {
	CreateStay(ctx context.Context, req application.StayRequest) (*application.StayDTO, *application.Rejection, error)
	ExtendStay(ctx context.Context, req application.StayRequest) (*application.StayDTO, *application.Rejection, error)
	PublishRejection(ctx context.Context, commandID, commandType string, req application.StayRequest, rej *application.Rejection)
}

// StayCommandConsumer applies stay commands read from Kafka.
type StayCommandConsumer struct {
	consumer *kafka.Consumer
	service  StayCommands
	logger   *zap.Logger
}

// NewStayCommandConsumer creates a new StayCommandConsumer.
func NewStayCommandConsumer(
	brokers []string,
	groupID string,
	topic string,
	service StayCommands,
	logger *zap.Logger,
) *StayCommandConsumer {
	return &StayCommandConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, topic, logger),
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming commands. This blocks until the context is cancelled.
func (c *StayCommandConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *StayCommandConsumer) Close() error {
	return c.consumer.Close()
}

func (c *StayCommandConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from commands topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	var apply func(context.Context, application.StayRequest) (*application.StayDTO, *application.Rejection, error)
	switch cloudEvent.Type {
	case CommandCreateStay:
		apply = c.service.CreateStay
	case CommandExtendStay:
		apply = c.service.ExtendStay
	default:
		c.logger.Debug("ignoring unhandled command type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	var req application.StayRequest
	if err := cloudEvent.ParseData(&req); err != nil {
		c.logger.Error("failed to parse stay command data",
			zap.String("command_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	result, rejection, err := apply(ctx, req)
	if err != nil {
		if apperr.IsValidation(err) {
			c.logger.Warn("dropping invalid stay command",
				zap.String("command_id", cloudEvent.ID),
				zap.String("type", cloudEvent.Type),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to apply stay command",
			zap.String("command_id", cloudEvent.ID),
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return err
	}

	if rejection != nil {
		c.service.PublishRejection(ctx, cloudEvent.ID, cloudEvent.Type, req, rejection)
		return nil
	}

	c.logger.Info("stay command applied",
		zap.String("command_id", cloudEvent.ID),
		zap.String("type", cloudEvent.Type),
		zap.String("stay_id", result.ID.String()),
	)
	return nil
}
