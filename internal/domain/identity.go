package domain

import "time"

// Role is the caller's authorization role.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
)

// Caller is an already-authenticated identity supplied by the auth layer.
type Caller struct {
	ID   string `json:"id"` // email
	Role Role   `json:"role"`
}

// IsReviewer reports whether the caller may review any claim.
func (c Caller) IsReviewer() bool {
	return c.Role == RoleHR
}

// Clock supplies the current time. Injected so scoring is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
