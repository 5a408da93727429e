// Package realtime carries row-level change events from the database
// to the board sessions that need them.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

type Table string

const (
	TableTasks         Table = "tasks"
	TableCollaborators Table = "task_collaborators"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventResync carries no row. It tells consumers that events may
	// have been lost and their state must be reloaded.
	EventResync EventType = "RESYNC"
)

// ResyncEvent is published by a source that may have missed changes.
var ResyncEvent = Event{Type: EventResync}

var (
	ErrUnknownTable     = errors.New("unknown table")
	ErrUnknownEventType = errors.New("unknown event type")
)

// TaskRow is a tasks row as serialized by the change triggers.
type TaskRow struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date"`
}

// CollaboratorRow is a task_collaborators row.
type CollaboratorRow struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one change. For tasks, Task holds the new row on insert and
// update and OldTask the previous one on update and delete; the same
// goes for Collaborator and OldCollaborator.
//
// Partial is set when the trigger had to drop the description to fit
// the notification size limit; consumers refetch the row.
type Event struct {
	Table   Table
	Type    EventType
	Partial bool

	Task    *TaskRow
	OldTask *TaskRow

	Collaborator    *CollaboratorRow
	OldCollaborator *CollaboratorRow
}

// TaskID returns the id of the task the event concerns.
func (e Event) TaskID() string {
	switch {
	case e.Task != nil:
		return e.Task.ID
	case e.OldTask != nil:
		return e.OldTask.ID
	case e.Collaborator != nil:
		return e.Collaborator.TaskID
	case e.OldCollaborator != nil:
		return e.OldCollaborator.TaskID
	}
	return ""
}

// Row returns the most recent snapshot of a task event.
func (e Event) Row() *TaskRow {
	if e.Task != nil {
		return e.Task
	}
	return e.OldTask
}

// CollaboratorRecord returns the most recent snapshot of a grant event.
func (e Event) CollaboratorRecord() *CollaboratorRow {
	if e.Collaborator != nil {
		return e.Collaborator
	}
	return e.OldCollaborator
}

type envelope struct {
	Table   Table           `json:"table,omitempty"`
	Type    EventType       `json:"type"`
	Partial bool            `json:"partial,omitempty"`
	New     json.RawMessage `json:"new,omitempty"`
	Old     json.RawMessage `json:"old,omitempty"`
}

// ParseEvent decodes a trigger payload.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	err := json.Unmarshal(payload, &env)
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	switch env.Type {
	case EventInsert, EventUpdate, EventDelete:
	case EventResync:
		return ResyncEvent, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	e := Event{Table: env.Table, Type: env.Type, Partial: env.Partial}
	switch env.Table {
	case TableTasks:
		e.Task, err = decodeRow[TaskRow](env.New)
		if err == nil {
			e.OldTask, err = decodeRow[TaskRow](env.Old)
		}
	case TableCollaborators:
		e.Collaborator, err = decodeRow[CollaboratorRow](env.New)
		if err == nil {
			e.OldCollaborator, err = decodeRow[CollaboratorRow](env.Old)
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownTable, env.Table)
	}
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode %s row: %w", env.Table, err)
	}
	return e, nil
}

func decodeRow[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	row := new(T)
	if err := json.Unmarshal(raw, row); err != nil {
		return nil, err
	}
	return row, nil
}

// MarshalJSON encodes e in the same shape the triggers produce.
func (e Event) MarshalJSON() ([]byte, error) {
	env := envelope{Table: e.Table, Type: e.Type, Partial: e.Partial}

	var newRow, oldRow any
	switch e.Table {
	case TableTasks:
		if e.Task != nil {
			newRow = e.Task
		}
		if e.OldTask != nil {
			oldRow = e.OldTask
		}
	case TableCollaborators:
		if e.Collaborator != nil {
			newRow = e.Collaborator
		}
		if e.OldCollaborator != nil {
			oldRow = e.OldCollaborator
		}
	}

	var err error
	if newRow != nil {
		if env.New, err = json.Marshal(newRow); err != nil {
			return nil, err
		}
	}
	if oldRow != nil {
		if env.Old, err = json.Marshal(oldRow); err != nil {
			return nil, err
		}
	}
	return json.Marshal(env)
}

// ToTask translates the row into the application entity.
func (r TaskRow) ToTask() (models.Task, error) {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %s: %w", r.ID, err)
	}

	task := models.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.DueDate != nil {
		due := *r.DueDate
		task.DueDate = &due
	}
	return task, nil
}

// TaskRowFromTask is the inverse of TaskRow.ToTask.
func TaskRowFromTask(task models.Task) TaskRow {
	row := TaskRow{
		ID:          task.ID,
		UserID:      task.UserID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.DueDate != nil {
		due := *task.DueDate
		row.DueDate = &due
	}
	return row
}
