// Package consumer reads the events published by the outbox and the comment relay
// and hands them to handlers.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/reactivities/internal/events"
)

// Reader is the part of kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is a decoded record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls records from a Reader, decodes them and dispatches to a Handler.
// Records are committed only after the handler succeeds; malformed records are
// committed and skipped.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		msg, err := decodeMessage(record)
		if err != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", record.Topic, record.Partition, record.Offset, err)
			recordDecodeError(record.Topic)
			if err := p.reader.CommitMessages(ctx, record); err != nil {
				p.logger.Printf("commit error after decode failure: %v", err)
			}
			continue
		}

		if err := p.handler.Handle(ctx, msg); err != nil {
			p.logger.Printf("handler error (event_type=%s, aggregate=%s): %v", msg.EventType, msg.AggregateID, err)
			recordHandlerError(msg)
			continue
		}

		if err := p.reader.CommitMessages(ctx, record); err != nil {
			p.logger.Printf("commit error: %v", err)
			continue
		}
		recordProcessed(msg)
	}
}

func decodeMessage(record kafka.Message) (Message, error) {
	eventType, ok := headerValue(record, "event_type")
	if !ok || eventType == "" {
		return Message{}, errors.New("missing event_type header")
	}
	schemaID, payload, err := events.DecodeWireFormat(record.Value)
	if err != nil {
		return Message{}, err
	}
	aggregateID, _ := headerValue(record, "aggregate_id")
	if aggregateID == "" {
		aggregateID = string(record.Key)
	}
	subject, _ := headerValue(record, "schema_subject")

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     eventType,
		AggregateID:   aggregateID,
		SchemaSubject: subject,
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}

func headerValue(record kafka.Message, key string) (string, bool) {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

// NewKafkaReader builds a group reader for topic.
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}
