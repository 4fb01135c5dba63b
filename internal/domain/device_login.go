package domain

import "time"

// DeviceLoginStatus enumerates valid device login request states.
const (
	DeviceLoginStatusPending    = "pending"
	DeviceLoginStatusApproved   = "approved"
	DeviceLoginStatusDenied     = "denied"
	DeviceLoginStatusExpired    = "expired"
	DeviceLoginStatusSuperseded = "superseded"
)

// DeviceLoginRequest tracks one web login attempt awaiting mobile approval.
type DeviceLoginRequest struct {
	ID          string
	UserID      string
	Code        string
	Status      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ResolvedAt  *time.Time
	ClaimedAt   *time.Time
	ActedDevice string
}

// Expired reports whether the validity window has elapsed relative to now.
// It is a pure function of the stored timestamps; callers materialize the
// transition with a conditional store update.
func (r DeviceLoginRequest) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(r.ExpiresAt.UTC())
}

// Terminal reports whether the request reached a final state.
func (r DeviceLoginRequest) Terminal() bool {
	return r.Status != DeviceLoginStatusPending
}
