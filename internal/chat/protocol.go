package chat

import (
	"encoding/json"
	"time"
)

// Client-to-server event names.
const (
	EventJoinGroup   = "JoinGroup"
	EventLeaveGroup  = "LeaveGroup"
	EventSendComment = "SendComment"
)

// Server-to-client event names.
const (
	EventReceiveComment  = "ReceiveComment"
	EventActivityChanged = "ActivityChanged"
	EventError           = "Error"
)

// Frame is the envelope for every websocket message in either direction.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Comment is one message in an activity's comment feed. Comments are relayed, never stored.
type Comment struct {
	ID          string    `json:"id"`
	ActivityID  string    `json:"activityId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
	// Seq is the position of the comment in its activity's feed on this node.
	Seq int64 `json:"seq"`
}

type groupRequest struct {
	ActivityID string `json:"activityId"`
}

type sendRequest struct {
	ID         string `json:"id"`
	ActivityID string `json:"activityId"`
	Body       string `json:"body"`
}

// ActivityChange tells viewers of an activity that its state moved on.
type ActivityChange struct {
	ActivityID string `json:"activityId"`
	Change     string `json:"change"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: body})
}
