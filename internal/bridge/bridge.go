package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/wreporter/company-directory/internal/adapter"
	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/logger"
	"github.com/wreporter/company-directory/internal/store"
)

// subject covers every report event; routing happens on the event type
// carried in the payload, not the subject hierarchy.
const subject = "reports.>"

// Config holds the configuration for the report bridge
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	PoolSize       int
	QueueSize      int
}

// Bridge consumes report events from JetStream and applies them to the
// conversation and artifact stores.
type Bridge interface {
	// Run starts the report bridge and blocks until ctx is canceled
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	store  store.Store
	json   adapter.JSON
	clock  adapter.Clock
	config Config
}

// NewBridge creates a new report bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	st store.Store,
	jsonAdapter adapter.JSON,
	clock adapter.Clock,
) (Bridge, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:     nc,
		js:     js,
		store:  st,
		json:   jsonAdapter,
		clock:  clock,
		config: cfg,
	}, nil
}

// Run starts the report bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.Info("Starting report bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		FilterSubject: subject,
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	// Bounded worker pool: section content can be large and the store
	// writes take row locks, so unbounded goroutine-per-message fan-out
	// is not acceptable here.
	pool := pond.NewPool(
		b.config.PoolSize,
		pond.WithQueueSize(b.config.QueueSize),
		pond.WithContext(ctx),
	)
	defer pool.StopAndWait()

	sub, err := consumer.Consume(func(msg adapter.Message) {
		pool.Submit(func() {
			b.handleMessage(ctx, msg)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("Started consuming messages")

	<-ctx.Done()
	logger.Info("Shutting down report bridge")
	return ctx.Err()
}

// handleMessage processes a single report event. Unparseable or
// unroutable messages are terminated; transient store failures are
// NAKed for redelivery after an in-process retry window.
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var event domain.ReportEvent
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error(err, zap.String("message", "Failed to unmarshal event"))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	fields := []zap.Field{
		zap.String("eventID", event.EventID),
		zap.String("eventType", string(event.EventType)),
		zap.String("legalEntityNo", event.LegalEntityNo),
		zap.String("topic", string(event.Topic)),
		zap.String("sectionKey", event.SectionKey),
	}
	if metadata != nil {
		fields = append(fields, zap.Uint64("deliveryCount", metadata.NumDelivered))
	}
	logger.Info("Received event", fields...)

	if err := b.validateEvent(&event); err != nil {
		logger.Error(err, zap.String("eventID", event.EventID))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	if err := b.applyWithRetry(ctx, &event); err != nil {
		if errors.Is(err, domain.ErrInvalidStatusTransition) {
			// Redelivery cannot fix an out-of-order transition
			logger.Error(err, zap.String("eventID", event.EventID))
			if err := msg.Term(); err != nil {
				logger.Error(err, zap.String("message", "Failed to terminate message"))
			}
			return
		}
		logger.Error(err, zap.String("message", "Failed to apply event"))
		if err := msg.Nak(); err != nil {
			logger.Error(err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if err := msg.Ack(); err != nil {
		logger.Error(err, zap.String("message", "Failed to ACK message"))
	}
}

// validateEvent rejects events that can never be applied, so they are
// terminated instead of redelivered.
func (b *bridge) validateEvent(event *domain.ReportEvent) error {
	if event.LegalEntityNo == "" {
		return errors.New("event missing legal entity number")
	}
	if !domain.IsValidTopic(event.Topic) {
		return fmt.Errorf("unknown topic: %s", event.Topic)
	}
	switch event.EventType {
	case domain.EventTypeSectionLoading, domain.EventTypeSectionDone:
		if event.SectionKey == "" {
			return errors.New("section event missing section key")
		}
	case domain.EventTypeMessageAppended:
		if event.Message == nil {
			return errors.New("message event missing message body")
		}
	default:
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}
	return nil
}

// applyWithRetry applies one event to the store, retrying transient
// failures with exponential backoff inside the consumer's ack window.
// Permanent failures short-circuit the retry loop.
func (b *bridge) applyWithRetry(ctx context.Context, event *domain.ReportEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = b.config.AckWaitTimeout / 2

	operation := func() error {
		err := b.apply(ctx, event)
		if errors.Is(err, domain.ErrInvalidStatusTransition) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// apply routes one event to the matching store operation
func (b *bridge) apply(ctx context.Context, event *domain.ReportEvent) error {
	switch event.EventType {
	case domain.EventTypeSectionLoading:
		_, err := b.store.UpsertArtifact(ctx, store.UpsertArtifactInput{
			LegalEntityNo: event.LegalEntityNo,
			Topic:         event.Topic,
			SectionKey:    event.SectionKey,
			Title:         event.Title,
			Status:        domain.ArtifactStatusLoading,
		})
		return err

	case domain.EventTypeSectionDone:
		_, err := b.store.UpsertArtifact(ctx, store.UpsertArtifactInput{
			LegalEntityNo: event.LegalEntityNo,
			Topic:         event.Topic,
			SectionKey:    event.SectionKey,
			Title:         event.Title,
			Content:       event.Content,
			Status:        domain.ArtifactStatusDone,
		})
		return err

	case domain.EventTypeMessageAppended:
		conv, err := b.store.OpenOrContinueConversation(ctx, store.OpenConversationInput{
			LegalEntityNo: event.LegalEntityNo,
			Topic:         event.Topic,
		})
		if err != nil {
			return err
		}
		msg := *event.Message
		if msg.Timestamp.IsZero() {
			msg.Timestamp = b.clock.Now()
		}
		return b.store.AppendMessage(ctx, conv.ID, msg)

	default:
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}
	b.nc.Close()
}
