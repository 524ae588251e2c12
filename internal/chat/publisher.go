package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/reactivities/internal/events"
)

const commentPostedSchema = `{
  "type": "object",
  "title": "CommentPosted",
  "properties": {
    "comment_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "username": {"type": "string"},
    "display_name": {"type": "string"},
    "image": {"type": "string"},
    "body": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["comment_id", "activity_id", "username", "body", "created_at"],
  "additionalProperties": false
}`

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(ctx context.Context, subject, schema string) (int, error)
}

// KafkaPublisher writes comments to a topic keyed by activity ID, so every node
// consuming the topic sees an activity's comments in the same order.
type KafkaPublisher struct {
	writer   messageWriter
	registry schemaRegistrar
	topic    string
	subject  string

	mu       sync.Mutex
	schemaID int
}

// NewKafkaPublisher constructs a publisher for topic. The schema subject is "<topic>-value".
func NewKafkaPublisher(writer messageWriter, registry schemaRegistrar, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer:   writer,
		registry: registry,
		topic:    topic,
		subject:  topic + "-value",
	}
}

// Publish frames the comment with its registry schema ID and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, comment Comment) error {
	schemaID, err := p.resolveSchema(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(events.CommentPosted{
		CommentID:   comment.ID,
		ActivityID:  comment.ActivityID,
		Username:    comment.Username,
		DisplayName: comment.DisplayName,
		Image:       comment.Image,
		Body:        comment.Body,
		CreatedAt:   comment.CreatedAt,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, p.topic, kafka.Message{
		Key:   []byte(comment.ActivityID),
		Value: events.EncodeWireFormat(schemaID, payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeCommentPosted)},
			{Key: "schema_subject", Value: []byte(p.subject)},
			{Key: "aggregate_id", Value: []byte(comment.ActivityID)},
		},
	})
}

func (p *KafkaPublisher) resolveSchema(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schemaID != 0 {
		return p.schemaID, nil
	}
	id, err := p.registry.EnsureSchema(ctx, p.subject, commentPostedSchema)
	if err != nil {
		return 0, err
	}
	p.schemaID = id
	return id, nil
}

// CommentFromEvent converts a relayed record back into a feed comment.
func CommentFromEvent(e events.CommentPosted) Comment {
	return Comment{
		ID:          e.CommentID,
		ActivityID:  e.ActivityID,
		Username:    e.Username,
		DisplayName: e.DisplayName,
		Image:       e.Image,
		Body:        e.Body,
		CreatedAt:   e.CreatedAt,
	}
}
