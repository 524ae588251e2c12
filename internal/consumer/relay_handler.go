package consumer

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"example.com/reactivities/internal/chat"
	"example.com/reactivities/internal/events"
)

// Relay is the part of the chat hub fed from Kafka.
type Relay interface {
	Deliver(chat.Comment) (chat.Comment, bool)
	ActivityChanged(activityID, change string)
}

// RelayHandler pushes relayed comments and activity events to websocket viewers.
type RelayHandler struct {
	relay Relay
}

// NewRelayHandler constructs a RelayHandler.
func NewRelayHandler(relay Relay) *RelayHandler {
	return &RelayHandler{relay: relay}
}

// Handle routes msg by event type. Unknown types are ignored.
func (h *RelayHandler) Handle(_ context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeCommentPosted:
		var posted events.CommentPosted
		if err := json.Unmarshal(msg.Payload, &posted); err != nil {
			return errors.Wrap(err, "decode comment")
		}
		if posted.CommentID == "" || posted.ActivityID == "" {
			return errors.New("comment without id or activity")
		}
		h.relay.Deliver(chat.CommentFromEvent(posted))
	case events.TypeActivityCreated, events.TypeActivityUpdated, events.TypeActivityDeleted,
		events.TypeAttendeeJoined, events.TypeAttendeeLeft:
		activityID := msg.AggregateID
		if activityID == "" {
			var ref struct {
				ActivityID string `json:"activity_id"`
			}
			if err := json.Unmarshal(msg.Payload, &ref); err != nil {
				return errors.Wrap(err, "decode activity reference")
			}
			activityID = ref.ActivityID
		}
		if activityID != "" {
			h.relay.ActivityChanged(activityID, msg.EventType)
		}
	}
	return nil
}
