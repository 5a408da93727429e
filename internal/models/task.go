package models

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// TempIDPrefix marks identifiers generated locally for tasks the
// remote store has not confirmed yet.
const TempIDPrefix = "temp-"

var ErrInvalidStatus = errors.New("invalid task status")

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus validates s. The camel-cased "inProgress" written by
// older clients is accepted as StatusInProgress.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return Status(s), nil
	}
	if strings.EqualFold(s, "inProgress") || s == "in_progress" {
		return StatusInProgress, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueDate     *time.Time
}

func (t Task) IsTemporary() bool {
	return strings.HasPrefix(t.ID, TempIDPrefix)
}

// TaskPatch carries a partial update. Nil fields are left untouched;
// ClearDueDate resets the due date to null.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *Status
	DueDate      *time.Time
	ClearDueDate bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Status == nil &&
		p.DueDate == nil &&
		!p.ClearDueDate
}

// Apply returns a copy of t with the patch merged in.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	return t
}

// TaskInput is what a user submits when creating a task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
}
