package domain

import "time"

// PushDevice is a registered mobile push token for a user.
type PushDevice struct {
	UserID    string
	Token     string
	Platform  string
	CreatedAt time.Time
}
