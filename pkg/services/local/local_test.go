package local

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/stores"
)

func setupLocal(t *testing.T) (*Calendar, *Tasks, *Mail) {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(t.TempDir(), "local.db"),
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewCalendar(store), NewTasks(store), NewMail(store)
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func TestCalendarCreateAndGetBlock(t *testing.T) {
	cal, tasks, _ := setupLocal(t)
	ctx := context.Background()

	created, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1",
		Title:  "deep work",
		Kind:   "focus",
		Start:  at(9),
		End:    at(11),
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated block id")
	}

	task, err := tasks.CreateTask(ctx, services.Task{UserID: "u1", Title: "write report", EstimatedMinutes: 60})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := tasks.AssignToBlock(ctx, "u1", task.ID, created.ID); err != nil {
		t.Fatalf("assign task: %v", err)
	}

	got, err := cal.GetBlock(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if len(got.TaskIDs) != 1 || got.TaskIDs[0] != task.ID {
		t.Fatalf("expected assigned task id %q, got %v", task.ID, got.TaskIDs)
	}
}

func TestCalendarRejectsOverlap(t *testing.T) {
	cal, _, _ := setupLocal(t)
	ctx := context.Background()

	if _, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1", Title: "standup", Start: at(9), End: at(10),
	}); err != nil {
		t.Fatalf("create first block: %v", err)
	}

	_, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1", Title: "overlap", Start: at(9).Add(30 * time.Minute), End: at(11),
	})
	if !fault.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Same range for a different user is fine.
	if _, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u2", Title: "other user", Start: at(9), End: at(10),
	}); err != nil {
		t.Fatalf("create for other user: %v", err)
	}
}

func TestCalendarMoveBlock(t *testing.T) {
	cal, _, _ := setupLocal(t)
	ctx := context.Background()

	a, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1", Title: "a", Start: at(9), End: at(10),
	})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1", Title: "b", Start: at(11), End: at(12),
	})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	// Moving onto another block conflicts, moving within its own slot
	// does not.
	if err := cal.MoveBlock(ctx, "u1", a.ID, at(11), at(12)); !fault.IsConflict(err) {
		t.Fatalf("expected conflict moving onto b, got %v", err)
	}
	if err := cal.MoveBlock(ctx, "u1", b.ID, at(11).Add(15*time.Minute), at(12)); err != nil {
		t.Fatalf("move within own slot: %v", err)
	}

	got, err := cal.GetBlock(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get moved block: %v", err)
	}
	if !got.Start.Equal(at(11).Add(15 * time.Minute)) {
		t.Fatalf("unexpected start after move: %v", got.Start)
	}
}

func TestCalendarRejectsInvertedRange(t *testing.T) {
	cal, _, _ := setupLocal(t)

	_, err := cal.CreateBlock(context.Background(), services.TimeBlock{
		UserID: "u1", Title: "backwards", Start: at(10), End: at(9),
	})
	if !fault.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCalendarCheckConflictsExcludesSelf(t *testing.T) {
	cal, _, _ := setupLocal(t)
	ctx := context.Background()

	block, err := cal.CreateBlock(ctx, services.TimeBlock{
		UserID: "u1", Title: "solo", Start: at(9), End: at(10),
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}

	conflicts, err := cal.CheckConflicts(ctx, "u1", at(9), at(10), block.ID)
	if err != nil {
		t.Fatalf("check conflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts excluding self, got %v", conflicts)
	}
}

func TestTasksCreateDefaults(t *testing.T) {
	_, tasks, _ := setupLocal(t)
	ctx := context.Background()

	task, err := tasks.CreateTask(ctx, services.Task{UserID: "u1", Title: "untriaged"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Priority != services.PriorityMedium {
		t.Fatalf("expected default medium priority, got %q", task.Priority)
	}

	if _, err := tasks.CreateTask(ctx, services.Task{UserID: "u1"}); !fault.IsValidation(err) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
}

func TestTasksAssignRequiresBlock(t *testing.T) {
	_, tasks, _ := setupLocal(t)
	ctx := context.Background()

	task, err := tasks.CreateTask(ctx, services.Task{UserID: "u1", Title: "loose"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := tasks.AssignToBlock(ctx, "u1", task.ID, "no-such-block"); !fault.IsNotFound(err) {
		t.Fatalf("expected not-found assigning to missing block, got %v", err)
	}
}

func TestTasksUpdateAndDelete(t *testing.T) {
	_, tasks, _ := setupLocal(t)
	ctx := context.Background()

	task, err := tasks.CreateTask(ctx, services.Task{UserID: "u1", Title: "draft", EstimatedMinutes: 30})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	task.Done = true
	task.Title = "draft sent"
	if err := tasks.UpdateTask(ctx, *task); err != nil {
		t.Fatalf("update task: %v", err)
	}

	got, err := tasks.GetTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Done || got.Title != "draft sent" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := tasks.DeleteTask(ctx, "u1", task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := tasks.GetTask(ctx, "u1", task.ID); !fault.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestMailFlagsAndInbox(t *testing.T) {
	cal, _, mail := setupLocal(t)
	ctx := context.Background()

	store := cal.store
	for i, id := range []string{"m1", "m2"} {
		err := store.CreateMessage(ctx, services.EmailMessage{
			ID:         id,
			UserID:     "u1",
			Sender:     "boss@example.com",
			Subject:    "status",
			ReceivedAt: at(8).Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed message %s: %v", id, err)
		}
	}

	if err := mail.MarkRead(ctx, "u1", "m1", true); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := mail.FlagMessage(ctx, "u1", "m2", true); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if err := mail.ArchiveMessage(ctx, "u1", "m1"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	inbox, err := mail.ListInbox(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != "m2" {
		t.Fatalf("expected only m2 in inbox, got %+v", inbox)
	}
	if !inbox[0].Flagged {
		t.Fatal("expected m2 flagged")
	}

	got, err := mail.GetMessage(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("get archived message: %v", err)
	}
	if !got.Read || !got.Archived {
		t.Fatalf("expected m1 read and archived: %+v", got)
	}
}
