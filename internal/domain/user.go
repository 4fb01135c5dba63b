package domain

import "time"

// User roles understood by the admin guard.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User represents an intranet account.
type User struct {
	ID           string
	Identifier   string
	DisplayName  string
	Role         string
	DirectionID  *string
	PasswordHash []byte
	CreatedAt    time.Time
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
