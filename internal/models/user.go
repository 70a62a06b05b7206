package models

import "time"

// User is the owner of timeslots, filters, destinations and profiles.
// Authentication is handled by an external collaborator; only the fields
// the notification core needs are kept here.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized ID and timestamps.
func NewUser(username, email string) *User {
	now := time.Now()
	return &User{
		ID:        newID(),
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
