package models

import "strings"

// Collection is the full user set as persisted: {"users": [...]}.
type Collection struct {
	Users []User `json:"users"`
}

// Clone returns a deep copy, so snapshots can be handed out without
// sharing mutable state.
func (c Collection) Clone() Collection {
	out := Collection{Users: make([]User, len(c.Users))}
	copy(out.Users, c.Users)
	for i := range out.Users {
		if ll := out.Users[i].LastLogin; ll != nil {
			t := *ll
			out.Users[i].LastLogin = &t
		}
	}
	return out
}

// Len returns the number of users.
func (c Collection) Len() int { return len(c.Users) }

// ByUserName returns the record with exactly this username.
func (c *Collection) ByUserName(username string) (*User, bool) {
	for i := range c.Users {
		if c.Users[i].UserName == username {
			return &c.Users[i], true
		}
	}
	return nil, false
}

// ByEmail returns the record whose email matches, ignoring case.
func (c *Collection) ByEmail(email string) (*User, bool) {
	if email == "" {
		return nil, false
	}
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Email, email) {
			return &c.Users[i], true
		}
	}
	return nil, false
}

// ByPrincipal resolves a login identifier. Matches are tried in
// priority order: exact username, exact email, then the local part of
// the email (text before '@'). Records without an email are only
// reachable by username.
func (c *Collection) ByPrincipal(principal string) (*User, bool) {
	if u, ok := c.ByUserName(principal); ok {
		return u, true
	}
	for i := range c.Users {
		if c.Users[i].Email != "" && c.Users[i].Email == principal {
			return &c.Users[i], true
		}
	}
	for i := range c.Users {
		email := c.Users[i].Email
		if email == "" {
			continue
		}
		local, _, _ := strings.Cut(email, "@")
		if local != "" && local == principal {
			return &c.Users[i], true
		}
	}
	return nil, false
}
