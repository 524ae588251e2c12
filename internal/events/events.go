// Package events defines the payloads published to Kafka for activity and attendance changes.
package events

import "time"

// Event types recorded in the outbox and carried in the event_type header.
const (
	TypeActivityCreated = "activity.created"
	TypeActivityUpdated = "activity.updated"
	TypeActivityDeleted = "activity.deleted"
	TypeAttendeeJoined  = "attendee.joined"
	TypeAttendeeLeft    = "attendee.left"
	TypeCommentPosted   = "comment.posted"
)

// ActivityCreated is emitted when a host schedules a new activity.
type ActivityCreated struct {
	ActivityID   string    `json:"activity_id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Date         time.Time `json:"date"`
	City         string    `json:"city"`
	Venue        string    `json:"venue"`
	HostUserID   string    `json:"host_user_id"`
	HostUsername string    `json:"host_username"`
	Version      int       `json:"version"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ActivityUpdated carries the full post-edit state of an activity.
type ActivityUpdated struct {
	ActivityID  string    `json:"activity_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
	Version     int       `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted once an activity and its attendee rows are gone.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AttendeeJoined is emitted for the host at creation and for every later attend.
type AttendeeJoined struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	IsHost     bool      `json:"is_host"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AttendeeLeft is emitted when a guest unattends.
type AttendeeLeft struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CommentPosted is the relay record for a chat comment. Comments are not stored.
type CommentPosted struct {
	CommentID   string    `json:"comment_id"`
	ActivityID  string    `json:"activity_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Image       string    `json:"image,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
