package outbox

import "example.com/reactivities/internal/events"

// schemaCatalog maps event type to the JSON schema registered for its subject.
var schemaCatalog = map[string]string{
	events.TypeActivityCreated: activityCreatedSchema,
	events.TypeActivityUpdated: activityUpdatedSchema,
	events.TypeActivityDeleted: activityDeletedSchema,
	events.TypeAttendeeJoined:  attendeeJoinedSchema,
	events.TypeAttendeeLeft:    attendeeLeftSchema,
}

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "title": {"type": "string"},
    "category": {"type": "string"},
    "date": {"type": "string", "format": "date-time"},
    "city": {"type": "string"},
    "venue": {"type": "string"},
    "host_user_id": {"type": "string"},
    "host_username": {"type": "string"},
    "version": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "title", "category", "date", "city", "venue", "host_user_id", "version", "occurred_at"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "category": {"type": "string"},
    "date": {"type": "string", "format": "date-time"},
    "city": {"type": "string"},
    "venue": {"type": "string"},
    "version": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "title", "description", "category", "date", "city", "venue", "version", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "occurred_at"],
  "additionalProperties": false
}`

const attendeeJoinedSchema = `{
  "type": "object",
  "title": "AttendeeJoined",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "username": {"type": "string"},
    "is_host": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "is_host", "occurred_at"],
  "additionalProperties": false
}`

const attendeeLeftSchema = `{
  "type": "object",
  "title": "AttendeeLeft",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`
