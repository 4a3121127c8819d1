// Package models holds the records managed by the credential store and
// the session registry.
package models

import "time"

// Status gates whether an account may log in.
type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

// Valid reports whether s is a status the service may assign.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusLocked
}

// User is a stored account. Password holds the encoded digest, never
// the plaintext.
type User struct {
	UserName  string     `json:"username"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	CreatedAt Timestamp  `json:"created_at"`
	LastLogin *Timestamp `json:"last_login"`
	Status    Status     `json:"status"`
}

// IsActive reports whether the account may log in. Records without a
// status are treated as not active.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// View strips the digest.
func (u *User) View() UserView {
	v := UserView{
		UserName:  u.UserName,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Time,
		Status:    u.Status,
	}
	if u.LastLogin != nil && !u.LastLogin.Unparsed() {
		t := u.LastLogin.Time
		v.LastLogin = &t
	}
	return v
}

// UserView is the sanitized form of User handed to callers.
type UserView struct {
	UserName  string     `json:"username"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	Status    Status     `json:"status"`
}
