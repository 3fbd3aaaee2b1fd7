package agent

import (
	"errors"
	"time"
)

var ErrNoAgentAvailable = errors.New("no delivery agent available")

// Agent is a delivery agent eligible for assignment selection.
type Agent struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	Available      bool       `json:"available"`
	LastAssignedAt *time.Time `json:"lastAssignedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
