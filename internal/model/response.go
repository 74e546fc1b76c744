package model

import "time"

// APIResponse is the JSON envelope of admin mutations: {success, item}.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Item    T      `json:"item,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](item T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Item:    item,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse(errMsg string) APIResponse[any] {
	return APIResponse[any]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChangeEvent is pushed to connected dashboards after a record mutation.
type ChangeEvent struct {
	Type       string     `json:"type"`
	Collection Collection `json:"collection"`
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Change event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventPing    = "ping"
)

// NewChangeEvent creates a change event stamped with the current time.
func NewChangeEvent(eventType string, c Collection, id string) ChangeEvent {
	return ChangeEvent{
		Type:       eventType,
		Collection: c,
		ID:         id,
		Timestamp:  time.Now().UTC(),
	}
}
