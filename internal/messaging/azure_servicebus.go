package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/config"
	"example.com/backstage/services/ordermonitor/internal/metrics"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/services"
)

// EventOrderUpserted is the type of a message carrying new or changed orders
const EventOrderUpserted = "OrderUpserted"

const (
	receiveBatch = 10
	retryDelay   = 2 * time.Second
)

// ErrMalformedMessage marks a message that can never be processed
var ErrMalformedMessage = errors.New("malformed order event")

// OrderEvent is the body of an order event message
type OrderEvent struct {
	Type   string         `json:"type"`
	Orders []models.Order `json:"orders"`
	SentAt time.Time      `json:"sentAt"`
}

// OrderIngester stores the orders carried by an event
type OrderIngester interface {
	Ingest(ctx context.Context, orders []models.Order) (int, error)
}

// receiver is the part of *azservicebus.Receiver the consumer uses
type receiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// AzureServiceBus reads and writes order events on a queue
type AzureServiceBus struct {
	client    *azservicebus.Client
	queueName string
	metrics   *metrics.Metrics
}

// NewAzureServiceBus connects to the configured namespace
func NewAzureServiceBus(cfg config.AzureConfig, m *metrics.Metrics) (*AzureServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &AzureServiceBus{client: client, queueName: cfg.QueueName, metrics: m}, nil
}

// Publish sends orders as one OrderUpserted event
func (a *AzureServiceBus) Publish(ctx context.Context, orders []models.Order) error {
	sender, err := a.client.NewSender(a.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus sender")
	}
	defer sender.Close(context.Background())

	msg, err := NewOrderMessage(orders, "ordermonitor")
	if err != nil {
		return err
	}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrap(err, "failed to send order event")
	}
	log.Debug().Int("orders", len(orders)).Str("queue", a.queueName).Msg("Order event published")
	return nil
}

// ProcessMessages receives order events until ctx is cancelled
func (a *AzureServiceBus) ProcessMessages(ctx context.Context, ingester OrderIngester) error {
	r, err := a.client.NewReceiverForQueue(a.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	return consume(ctx, r, ingester, a.metrics)
}

// Close closes the Service Bus client
func (a *AzureServiceBus) Close() error {
	return a.client.Close(context.Background())
}

func consume(ctx context.Context, r receiver, ingester OrderIngester, m *metrics.Metrics) error {
	defer func() {
		if err := r.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		messages, err := r.ReceiveMessages(ctx, receiveBatch, nil)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Msg("No order events available, waiting")
				select {
				case <-time.After(retryDelay):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return errors.Wrap(err, "failed to receive order events")
		}

		for _, msg := range messages {
			settle(ctx, r, msg, ingester, m)
		}
	}
}

func settle(ctx context.Context, r receiver, msg *azservicebus.ReceivedMessage, ingester OrderIngester, m *metrics.Metrics) {
	err := HandleMessage(ctx, msg.Body, ingester)
	m.RecordResult(metrics.MessagesConsumed, err)

	switch {
	case err == nil:
		if err := r.CompleteMessage(ctx, msg, nil); err != nil {
			log.Error().Err(err).Str("message_id", msg.MessageID).Msg("Failed to complete message")
		}
	case errors.Is(err, ErrMalformedMessage):
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Dead-lettering order event")
		reason := "MalformedOrderEvent"
		desc := err.Error()
		if err := r.DeadLetterMessage(ctx, msg, &azservicebus.DeadLetterOptions{Reason: &reason, ErrorDescription: &desc}); err != nil {
			log.Error().Err(err).Str("message_id", msg.MessageID).Msg("Failed to dead-letter message")
		}
	default:
		log.Error().Err(err).Str("message_id", msg.MessageID).Msg("Error processing order event")
		// Return the message to the queue
		if err := r.AbandonMessage(ctx, msg, nil); err != nil {
			log.Error().Err(err).Str("message_id", msg.MessageID).Msg("Failed to abandon message")
		}
	}
}

// HandleMessage decodes one event body and ingests its orders
func HandleMessage(ctx context.Context, body []byte, ingester OrderIngester) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return errors.Wrap(ErrMalformedMessage, err.Error())
	}
	if event.Type != EventOrderUpserted {
		return errors.Wrapf(ErrMalformedMessage, "unexpected event type %q", event.Type)
	}
	if len(event.Orders) == 0 {
		return nil
	}

	_, err := ingester.Ingest(ctx, event.Orders)
	if errors.Is(err, services.ErrNoValidOrders) {
		return errors.Wrap(ErrMalformedMessage, err.Error())
	}
	return err
}

// NewOrderMessage builds the Service Bus message for an OrderUpserted event
func NewOrderMessage(orders []models.Order, source string) (*azservicebus.Message, error) {
	data, err := json.Marshal(OrderEvent{Type: EventOrderUpserted, Orders: orders, SentAt: time.Now().UTC()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal order event")
	}
	contentType := "application/json"
	messageID := uuid.New().String()
	return &azservicebus.Message{
		MessageID:   &messageID,
		Body:        data,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"source": source,
			"type":   EventOrderUpserted,
		},
	}, nil
}
