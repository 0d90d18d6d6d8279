package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeUserAuthenticated = "user.authenticated"

// UserAuthenticatedEvent is published each time a request passes the
// authentication gate.
type UserAuthenticatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

func NewUserAuthenticatedEvent(userID string) *UserAuthenticatedEvent {
	return &UserAuthenticatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserAuthenticated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
			},
		},
		UserID: userID,
	}
}
