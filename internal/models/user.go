package models

import "time"

// Column widths of users.name and users.email.
const (
	MaxNameLength  = 255
	MaxEmailLength = 255
)

type User struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Don't return password hash in JSON
}
