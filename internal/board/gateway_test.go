package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

// echoUpdates makes the remote store apply patches to the session's
// current copy of the task.
func echoUpdates(f *fixture) {
	f.tasks.UpdateFunc = func(_ context.Context, params services.UpdateTaskParams) (*models.Task, error) {
		task, ok := f.session.Task(params.ID)
		if !ok {
			return nil, services.ErrTaskNotFound
		}
		updated := params.Patch.Apply(task)
		return &updated, nil
	}
}

func TestSession_CreateTask(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var sawTemp bool
	f.tasks.CreateFunc = func(_ context.Context, params services.CreateTaskParams) (*models.Task, error) {
		tasks := f.session.Tasks()
		sawTemp = len(tasks) == 1 && tasks[0].IsTemporary() && tasks[0].Title == "Buy milk"
		task := newTask("task-1", models.StatusTodo)
		task.Title = params.Title
		return &task, nil
	}

	created, err := f.session.CreateTask(ctx, models.TaskInput{Title: "  Buy milk "})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if !sawTemp {
		t.Error("temporary task was not visible while the request was in flight")
	}
	if created.ID != "task-1" {
		t.Errorf("created.ID = %q, want %q", created.ID, "task-1")
	}

	tasks := f.session.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "task-1" {
		t.Fatalf("Tasks() = %+v, want only task-1", tasks)
	}
	if len(f.session.PendingMutations()) != 0 {
		t.Error("expected no pending mutations")
	}
	resolved := f.session.ResolvedMutations()
	if len(resolved) != 1 || resolved[0].State() != MutationConfirmed {
		t.Errorf("resolved mutations = %v, want one confirmed", resolved)
	}
	if got := f.notifier.last().Level; got != notify.LevelSuccess {
		t.Errorf("last notification level = %q, want success", got)
	}
}

func TestSession_CreateTask_RemoteFailure(t *testing.T) {
	f := newFixture()
	f.tasks.CreateFunc = func(context.Context, services.CreateTaskParams) (*models.Task, error) {
		return nil, errMockRemote
	}

	_, err := f.session.CreateTask(context.Background(), models.TaskInput{Title: "Buy milk"})
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("CreateTask() error = %v, want ErrRemoteFailure", err)
	}
	if !errors.Is(err, errMockRemote) {
		t.Errorf("CreateTask() error = %v, want the remote cause kept", err)
	}
	if n := len(f.session.Tasks()); n != 0 {
		t.Errorf("len(Tasks()) = %d, want 0 after rollback", n)
	}

	resolved := f.session.ResolvedMutations()
	if len(resolved) != 1 || resolved[0].State() != MutationFailed {
		t.Errorf("resolved mutations = %v, want one failed", resolved)
	}
	last := f.notifier.last()
	if last.Level != notify.LevelError || !strings.HasPrefix(last.Message, "Failed to create task") {
		t.Errorf("last notification = %+v, want create failure", last)
	}
}

func TestSession_CreateTask_Validation(t *testing.T) {
	tests := []struct {
		name  string
		title string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("a", maxTitleLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.session.CreateTask(context.Background(), models.TaskInput{Title: tt.title})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("CreateTask() error = %v, want ErrInvalidInput", err)
			}
			if len(f.tasks.Created) != 0 {
				t.Error("remote store was called for an invalid title")
			}
		})
	}
}

func TestSession_AuthRequired(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	f.identity.SignOut()
	ctx := context.Background()

	title := "new"
	checks := map[string]error{}
	_, checks["create"] = f.session.CreateTask(ctx, models.TaskInput{Title: "x"})
	_, checks["update"] = f.session.UpdateTask(ctx, "a", models.TaskPatch{Title: &title})
	checks["delete"] = f.session.DeleteTask(ctx, "a")
	_, checks["status"] = f.session.ChangeTaskStatus(ctx, "a", models.StatusDone)
	_, checks["add collaborator"] = f.session.AddCollaborator(ctx, "a", "bob")
	_, checks["remove collaborator"] = f.session.RemoveCollaborator(ctx, "grant-1")
	checks["load"] = f.session.Load(ctx)

	for name, err := range checks {
		if !errors.Is(err, ErrAuthRequired) {
			t.Errorf("%s: error = %v, want ErrAuthRequired", name, err)
		}
	}
	if len(f.tasks.Created)+len(f.tasks.Updated)+len(f.tasks.Deleted) != 0 {
		t.Error("remote store was called without a user")
	}
	if f.collaborators.AddCalls != 0 {
		t.Error("collaborator service was called without a user")
	}
}

func TestSession_UpdateTask(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	echoUpdates(f)

	title := "renamed"
	updated, err := f.session.UpdateTask(context.Background(), "a", models.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Title != "renamed" {
		t.Errorf("updated.Title = %q, want %q", updated.Title, "renamed")
	}
	task, _ := f.session.Task("a")
	if task.Title != "renamed" {
		t.Errorf("stored title = %q, want %q", task.Title, "renamed")
	}
}

func TestSession_UpdateTask_FailureKeepsOptimisticValue(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	f.tasks.UpdateFunc = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		return nil, errMockRemote
	}

	title := "renamed"
	_, err := f.session.UpdateTask(context.Background(), "a", models.TaskPatch{Title: &title})
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("UpdateTask() error = %v, want ErrRemoteFailure", err)
	}
	task, _ := f.session.Task("a")
	if task.Title != "renamed" {
		t.Errorf("stored title = %q, want the optimistic value", task.Title)
	}
}

func TestSession_UpdateTask_RejectsStatus(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))

	status := models.StatusDone
	_, err := f.session.UpdateTask(context.Background(), "a", models.TaskPatch{Status: &status})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("UpdateTask() error = %v, want ErrInvalidInput", err)
	}
	if len(f.tasks.Updated) != 0 {
		t.Error("remote store was called")
	}
}

func TestSession_DeleteTask(t *testing.T) {
	f := newFixture()
	f.seed(
		newTask("a", models.StatusTodo),
		newTask("b", models.StatusTodo),
		newTask("c", models.StatusTodo),
	)

	if err := f.session.DeleteTask(context.Background(), "b"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, ok := f.session.Task("b"); ok {
		t.Error("task b still present")
	}
	if len(f.tasks.Deleted) != 1 || f.tasks.Deleted[0].UserID != testUser.ID {
		t.Errorf("Deleted = %+v", f.tasks.Deleted)
	}
}

func TestSession_DeleteTask_DoneTaskFreesCompletedSlot(t *testing.T) {
	f := newFixture()
	seeded := []models.Task{newTask("open", models.StatusTodo), newTask("chore", models.StatusTodo)}
	for i := 0; i < 10; i++ {
		seeded = append(seeded, newTask(fmt.Sprintf("done-%d", i), models.StatusDone))
	}
	f.seed(seeded...)
	echoUpdates(f)

	f.subscription.Completed = 10
	f.subscription.ResyncFunc = func(string) int {
		n := 0
		for _, task := range f.session.Tasks() {
			if task.Status == models.StatusDone {
				n++
			}
		}
		return n
	}
	ctx := context.Background()

	if _, err := f.session.ChangeTaskStatus(ctx, "open", models.StatusDone); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("ChangeTaskStatus() error = %v, want ErrLimitReached", err)
	}

	if err := f.session.DeleteTask(ctx, "chore"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if n := f.subscription.resyncs(); n != 0 {
		t.Errorf("ResyncCalls = %d after deleting an open task, want 0", n)
	}

	if err := f.session.DeleteTask(ctx, "done-3"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := f.session.ChangeTaskStatus(ctx, "open", models.StatusDone); err != nil {
		t.Fatalf("ChangeTaskStatus() after deleting a done task error = %v", err)
	}
	task, _ := f.session.Task("open")
	if task.Status != models.StatusDone {
		t.Errorf("status = %q, want done", task.Status)
	}
}

func TestSession_UndoDelete(t *testing.T) {
	f := newFixture()
	removed := newTask("b", models.StatusInProgress)
	removed.Description = "two litres"
	f.seed(newTask("a", models.StatusTodo), removed, newTask("c", models.StatusTodo))
	ctx := context.Background()

	if _, err := f.session.UndoDelete(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UndoDelete() before any delete error = %v, want ErrNotFound", err)
	}
	if err := f.session.DeleteTask(ctx, "b"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	restored, err := f.session.UndoDelete(ctx)
	if err != nil {
		t.Fatalf("UndoDelete() error = %v", err)
	}
	if restored.Title != removed.Title || restored.Description != "two litres" || restored.Status != models.StatusInProgress {
		t.Errorf("restored = %+v", restored)
	}
	if len(f.tasks.Created) != 1 || f.tasks.Created[0].Status != models.StatusInProgress {
		t.Errorf("Created = %+v", f.tasks.Created)
	}
	if pos := f.session.store.Position(restored.ID); pos != 1 {
		t.Errorf("restored position = %d, want 1", pos)
	}

	if _, err = f.session.UndoDelete(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("second UndoDelete() error = %v, want ErrNotFound", err)
	}
}

func TestSession_UndoDelete_FailureAllowsRetry(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	ctx := context.Background()
	if err := f.session.DeleteTask(ctx, "a"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	f.tasks.CreateFunc = func(context.Context, services.CreateTaskParams) (*models.Task, error) {
		return nil, errMockRemote
	}
	if _, err := f.session.UndoDelete(ctx); !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("UndoDelete() error = %v, want ErrRemoteFailure", err)
	}
	if n := len(f.session.Tasks()); n != 0 {
		t.Errorf("len(Tasks()) = %d after a failed restore, want 0", n)
	}

	f.tasks.CreateFunc = nil
	if _, err := f.session.UndoDelete(ctx); err != nil {
		t.Fatalf("retried UndoDelete() error = %v", err)
	}
	if n := len(f.session.Tasks()); n != 1 {
		t.Errorf("len(Tasks()) = %d, want 1", n)
	}
}

func TestSession_UndoDelete_DoneTaskRespectsCeiling(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusDone))
	ctx := context.Background()
	if err := f.session.DeleteTask(ctx, "a"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	f.subscription.Completed = 10
	if _, err := f.session.UndoDelete(ctx); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("UndoDelete() error = %v, want ErrLimitReached", err)
	}
	if len(f.tasks.Created) != 0 {
		t.Error("remote store was called for a refused restore")
	}

	f.subscription.Pro = true
	if _, err := f.session.UndoDelete(ctx); err != nil {
		t.Errorf("UndoDelete() for a pro user error = %v", err)
	}
}

func TestSession_DeleteTask_FailureRestoresPosition(t *testing.T) {
	f := newFixture()
	f.seed(
		newTask("a", models.StatusTodo),
		newTask("b", models.StatusTodo),
		newTask("c", models.StatusTodo),
	)
	f.tasks.DeleteFunc = func(context.Context, services.DeleteTaskParams) error {
		if _, ok := f.session.Task("b"); ok {
			t.Error("task b visible while delete is in flight")
		}
		return errMockRemote
	}

	err := f.session.DeleteTask(context.Background(), "b")
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("DeleteTask() error = %v, want ErrRemoteFailure", err)
	}

	tasks := f.session.Tasks()
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("order after rollback = %v, want [a b c]", ids)
	}
}

func TestSession_DeleteTask_NotFoundStaysRemoved(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	f.tasks.DeleteFunc = func(context.Context, services.DeleteTaskParams) error {
		return services.ErrTaskNotFound
	}

	err := f.session.DeleteTask(context.Background(), "a")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteTask() error = %v, want ErrNotFound", err)
	}
	if _, ok := f.session.Task("a"); ok {
		t.Error("task a restored although the remote store does not have it")
	}
}

func TestSession_ChangeTaskStatus(t *testing.T) {
	tests := []struct {
		name      string
		pro       bool
		completed int
		target    models.Status
		wantErr   error
		wantState models.Status
	}{
		{"to in progress", false, 10, models.StatusInProgress, nil, models.StatusInProgress},
		{"to done under ceiling", false, 9, models.StatusDone, nil, models.StatusDone},
		{"to done at ceiling", false, 10, models.StatusDone, ErrLimitReached, models.StatusTodo},
		{"pro ignores ceiling", true, 50, models.StatusDone, nil, models.StatusDone},
		{"unknown status", false, 0, models.Status("archived"), ErrInvalidInput, models.StatusTodo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.seed(newTask("a", models.StatusTodo))
			echoUpdates(f)
			f.subscription.Pro = tt.pro
			f.subscription.Completed = tt.completed

			_, err := f.session.ChangeTaskStatus(context.Background(), "a", tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ChangeTaskStatus() error = %v, want %v", err, tt.wantErr)
			}

			task, _ := f.session.Task("a")
			if task.Status != tt.wantState {
				t.Errorf("status = %q, want %q", task.Status, tt.wantState)
			}
			if tt.wantErr != nil && len(f.tasks.Updated) != 0 {
				t.Error("remote store was called for a refused change")
			}
		})
	}
}

func TestSession_ChangeTaskStatus_FailureRestoresPrior(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusInProgress))
	f.tasks.UpdateFunc = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		task, _ := f.session.Task("a")
		if task.Status != models.StatusTodo {
			t.Errorf("in-flight status = %q, want todo", task.Status)
		}
		return nil, errMockRemote
	}

	_, err := f.session.ChangeTaskStatus(context.Background(), "a", models.StatusTodo)
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("ChangeTaskStatus() error = %v, want ErrRemoteFailure", err)
	}
	task, _ := f.session.Task("a")
	if task.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in-progress restored", task.Status)
	}
	if f.subscription.ResyncCalls != 0 {
		t.Error("completed count resynced after a failed change")
	}
}

func TestSession_ChangeTaskStatus_SameStatusIsNoop(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusDone))
	f.subscription.Completed = 100

	task, err := f.session.ChangeTaskStatus(context.Background(), "a", models.StatusDone)
	if err != nil {
		t.Fatalf("ChangeTaskStatus() error = %v", err)
	}
	if task.Status != models.StatusDone {
		t.Errorf("status = %q, want done", task.Status)
	}
	if len(f.tasks.Updated) != 0 {
		t.Error("remote store was called for an unchanged status")
	}
}

func TestSession_BuyMilkScenario(t *testing.T) {
	f := newFixture()
	f.seed()
	echoUpdates(f)
	f.subscription.Completed = 3
	ctx := context.Background()

	created, err := f.session.CreateTask(ctx, models.TaskInput{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	cols := f.session.Columns()
	if len(cols) != 3 || len(cols[0].Tasks) != 1 || cols[0].Tasks[0].Title != "Buy milk" {
		t.Fatalf("columns after create = %+v", cols)
	}

	if _, err = f.session.ChangeTaskStatus(ctx, created.ID, models.StatusDone); err != nil {
		t.Fatalf("ChangeTaskStatus() error = %v", err)
	}

	cols = f.session.Columns()
	if len(cols[0].Tasks) != 0 || len(cols[2].Tasks) != 1 {
		t.Errorf("columns after completion = %+v", cols)
	}
	if f.subscription.ResyncCalls != 1 {
		t.Errorf("ResyncCalls = %d, want 1", f.subscription.ResyncCalls)
	}
	if n := f.notifier.count(notify.LevelSuccess); n != 2 {
		t.Errorf("success notifications = %d, want 2", n)
	}
}

func TestSession_LoadFailureEmptiesStore(t *testing.T) {
	f := newFixture()
	f.seed(newTask("a", models.StatusTodo))
	f.tasks.ListFunc = func(context.Context, string) ([]*models.Task, error) {
		return nil, errMockRemote
	}

	err := f.session.Load(context.Background())
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("Load() error = %v, want ErrRemoteFailure", err)
	}
	if n := len(f.session.Tasks()); n != 0 {
		t.Errorf("len(Tasks()) = %d, want 0", n)
	}
	if f.session.Loading() {
		t.Error("Loading() = true after Load returned")
	}
}

func TestSession_Watch(t *testing.T) {
	f := newFixture()

	var snapshots [][]models.Task
	stop := f.session.Watch(func(tasks []models.Task) {
		snapshots = append(snapshots, tasks)
	})
	f.seed(newTask("a", models.StatusTodo))
	stop()
	f.seed(newTask("a", models.StatusTodo), newTask("b", models.StatusTodo))

	if len(snapshots) != 1 || len(snapshots[0]) != 1 {
		t.Errorf("snapshots = %v, want one snapshot with one task", snapshots)
	}
}
