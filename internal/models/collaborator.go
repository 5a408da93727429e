package models

import (
	"strings"
	"time"
)

type TaskCollaborator struct {
	ID        string
	TaskID    string
	UserID    string
	Handle    string
	AddedBy   string
	CreatedAt time.Time
}

type Profile struct {
	UserID string
	Email  string
	Handle string
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HandleFromEmail derives the public handle of a user: the lower-cased
// local part of the email address.
func HandleFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return strings.ToLower(local)
}
