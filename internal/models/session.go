package models

import "time"

// Session records that a user is currently logged in.
type Session struct {
	ID           string    `json:"id"`
	UserName     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
}
