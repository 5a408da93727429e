package models

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"in-progress", StatusInProgress, false},
		{"inProgress", StatusInProgress, false},
		{"done", StatusDone, false},
		{"", "", true},
		{"archived", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupByStatusPartitions(t *testing.T) {
	collections := map[string][]Task{
		"empty": nil,
		"only todo": {
			{ID: "1", Status: StatusTodo},
			{ID: "2", Status: StatusTodo},
		},
		"mixed": {
			{ID: "1", Status: StatusDone},
			{ID: "2", Status: StatusTodo},
			{ID: "3", Status: StatusInProgress},
			{ID: "4", Status: StatusDone},
			{ID: "5", Status: StatusTodo},
		},
	}

	for name, tasks := range collections {
		t.Run(name, func(t *testing.T) {
			columns := GroupByStatus(tasks)
			if len(columns) != 3 {
				t.Fatalf("expected 3 columns, got %d", len(columns))
			}

			seen := make(map[string]int)
			total := 0
			for i, column := range columns {
				if column.Status != Statuses[i] {
					t.Errorf("column %d: expected status %q, got %q", i, Statuses[i], column.Status)
				}
				for _, task := range column.Tasks {
					if task.Status != column.Status {
						t.Errorf("task %s with status %q placed in column %q", task.ID, task.Status, column.Status)
					}
					seen[task.ID]++
					total++
				}
			}

			if total != len(tasks) {
				t.Errorf("expected %d tasks across columns, got %d", len(tasks), total)
			}
			for _, task := range tasks {
				if seen[task.ID] != 1 {
					t.Errorf("task %s appears %d times", task.ID, seen[task.ID])
				}
			}
		})
	}
}

func TestTaskPatchApply(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	task := Task{ID: "1", Title: "old", Description: "d", Status: StatusTodo, DueDate: &due}

	title := "new"
	patched := TaskPatch{Title: &title}.Apply(task)
	if patched.Title != "new" || patched.Description != "d" || patched.DueDate == nil {
		t.Errorf("unexpected patch result: %+v", patched)
	}
	if task.Title != "old" {
		t.Error("Apply must not modify the original task")
	}

	cleared := TaskPatch{ClearDueDate: true}.Apply(task)
	if cleared.DueDate != nil {
		t.Error("expected due date to be cleared")
	}

	if !(TaskPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestHandleFromEmail(t *testing.T) {
	if got := HandleFromEmail(" Alice.Smith@Example.com "); got != "alice.smith" {
		t.Errorf("expected alice.smith, got %q", got)
	}
	if got := HandleFromEmail("bob"); got != "bob" {
		t.Errorf("expected bob, got %q", got)
	}
}
