package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskIDs(tasks []Task) []uint {
	ids := make([]uint, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func TestCanViewTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  uint
		task   uint
		action string
		want   bool
	}{
		{"assignee", aliceID, 1, ActionView, true},
		{"creator", danaID, 4, ActionUpdate, true},
		{"team flag manager", bobID, 5, ActionView, true},
		{"flag manager without manager role", erinID, 7, ActionView, true},
		{"manager of assignee without team", bobID, 6, ActionView, false},
		{"unrelated employee", hankID, 3, ActionView, false},
		{"hr view", danaID, 6, ActionView, true},
		{"hr update denied", danaID, 6, ActionUpdate, false},
		{"view_all_employees without hr role", ivyID, 6, ActionView, false},
		{"empty action means view", danaID, 6, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CanViewTask(ctx, tt.actor, tt.task, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			last := f.lastLog(t)
			assert.Equal(t, ResourceTasks, last.ResourceType)
			assert.Equal(t, idString(tt.task), last.ResourceID)
			assert.Equal(t, tt.want, last.Success)
			if tt.action == "" {
				assert.Equal(t, ActionView, last.Action)
			} else {
				assert.Equal(t, tt.action, last.Action)
			}
		})
	}
}

func TestCanViewTask_TeamManagerOfReportsTask(t *testing.T) {
	f := newFixture(t)

	// Task 1 is assigned to Alice (manager_id Bob) on the Platform team, which Bob flag-manages.
	ok, err := f.svc.IsTeamManager(context.Background(), bobID, platformTeam)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.CanViewTask(context.Background(), bobID, 1, ActionView)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanViewTask_NotFound(t *testing.T) {
	f := newFixture(t)

	ok, err := f.svc.CanViewTask(context.Background(), bobID, 404, ActionView)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)
	assert.False(t, f.lastLog(t).Success)
}

func TestFilterTasksForActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor uint
		want  []uint
	}{
		{"plain employee sees assigned and created", erinID, []uint{3, 4}},
		{"manager adds managed team tasks", bobID, []uint{1, 2, 5}},
		{"assignee only", aliceID, []uint{1}},
		{"flag manager without manager role gets no team tasks", erinID, []uint{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := f.svc.FilterTasksForActor(ctx, tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, taskIDs(tasks))

			last := f.lastLog(t)
			assert.Equal(t, tt.actor, last.EmployeeID)
			assert.Equal(t, BulkResourceID, last.ResourceID)
			assert.True(t, last.Success)
		})
	}
}

func TestFilterTasksForActor_HRSeesAllTasks(t *testing.T) {
	f := newFixture(t)

	var total int64
	require.NoError(t, f.db.Model(&Task{}).Count(&total).Error)

	tasks, err := f.svc.FilterTasksForActor(context.Background(), danaID)
	require.NoError(t, err)
	assert.Len(t, tasks, int(total))
}

func TestFilterTasksForActor_UnknownActor(t *testing.T) {
	f := newFixture(t)

	tasks, err := f.svc.FilterTasksForActor(context.Background(), 999)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, tasks)
	assert.Equal(t, int64(1), f.countLogs(t, 999))
	assert.False(t, f.lastLog(t).Success)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team := platformTeam
	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	t.Run("self assignment", func(t *testing.T) {
		task, err := f.svc.CreateTask(ctx, hankID, TaskInput{Title: "Self", AssignedToID: hankID, Deadline: &deadline})
		require.NoError(t, err)
		assert.Equal(t, hankID, task.CreatedByID)
		assert.Equal(t, "pending", task.Status)
		assert.Equal(t, "medium", task.Priority)

		last := f.lastLog(t)
		assert.Equal(t, ActionCreate, last.Action)
		assert.Equal(t, idString(task.ID), last.ResourceID)
		assert.True(t, last.Success)
	})

	t.Run("manager assigns to direct report on shared team", func(t *testing.T) {
		task, err := f.svc.CreateTask(ctx, bobID, TaskInput{Title: "Docs", AssignedToID: aliceID, TeamID: &team, Priority: "high"})
		require.NoError(t, err)
		assert.Equal(t, aliceID, task.AssignedToID)
		assert.Equal(t, "high", task.Priority)
	})

	t.Run("manager cannot assign outside direct reports", func(t *testing.T) {
		_, err := f.svc.CreateTask(ctx, bobID, TaskInput{Title: "Nope", AssignedToID: hankID})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.False(t, f.lastLog(t).Success)
	})

	t.Run("non-manager cannot assign to others", func(t *testing.T) {
		_, err := f.svc.CreateTask(ctx, erinID, TaskInput{Title: "Nope", AssignedToID: gusID})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("assignee must be on the team", func(t *testing.T) {
		_, err := f.svc.CreateTask(ctx, bobID, TaskInput{Title: "Wrong team", AssignedToID: gusID, TeamID: &team})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.False(t, f.lastLog(t).Success)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := f.svc.CreateTask(ctx, bobID, TaskInput{AssignedToID: bobID})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown actor cannot self-assign", func(t *testing.T) {
		var before int64
		require.NoError(t, f.db.Model(&Task{}).Count(&before).Error)

		task, err := f.svc.CreateTask(ctx, 999, TaskInput{Title: "Ghost", AssignedToID: 999})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Nil(t, task)

		var after int64
		require.NoError(t, f.db.Model(&Task{}).Count(&after).Error)
		assert.Equal(t, before, after)

		last := f.lastLog(t)
		assert.Equal(t, uint(999), last.EmployeeID)
		assert.Equal(t, ActionCreate, last.Action)
		assert.False(t, last.Success)
	})
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("creator changes anything", func(t *testing.T) {
		task, err := f.svc.UpdateTask(ctx, bobID, 1, TaskUpdate{Title: strPtr("Onboarding guide v2"), Priority: strPtr("high")})
		require.NoError(t, err)
		assert.Equal(t, "Onboarding guide v2", task.Title)
		assert.Equal(t, "high", task.Priority)
		assert.True(t, f.lastLog(t).Success)
	})

	t.Run("team flag manager changes anything", func(t *testing.T) {
		task, err := f.svc.UpdateTask(ctx, bobID, 5, TaskUpdate{Deadline: timePtr(time.Now().UTC())})
		require.NoError(t, err)
		assert.NotNil(t, task.Deadline)
	})

	t.Run("assignee changes status", func(t *testing.T) {
		task, err := f.svc.UpdateTask(ctx, aliceID, 1, TaskUpdate{Status: strPtr("done")})
		require.NoError(t, err)
		assert.Equal(t, "done", task.Status)
	})

	t.Run("assignee cannot change other fields", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, aliceID, 1, TaskUpdate{Status: strPtr("done"), Title: strPtr("mine now")})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		last := f.lastLog(t)
		assert.Equal(t, ActionUpdate, last.Action)
		assert.False(t, last.Success)
	})

	t.Run("unrelated employee denied", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, hankID, 3, TaskUpdate{Status: strPtr("done")})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("hr cannot update", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, danaID, 6, TaskUpdate{Status: strPtr("done")})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, bobID, 404, TaskUpdate{Status: strPtr("done")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, bobID, 1, TaskUpdate{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown actor denied", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, 999, 2, TaskUpdate{Status: strPtr("done")})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.False(t, f.lastLog(t).Success)
	})
}

func TestUpdateTask_Reassignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	platform, ops := platformTeam, opsTeam

	denied := []struct {
		name string
		upd  TaskUpdate
		want error
	}{
		{"assignee outside direct reports", TaskUpdate{AssignedToID: uintPtr(hankID)}, ErrPermissionDenied},
		{"assignee does not exist", TaskUpdate{AssignedToID: uintPtr(999)}, ErrPermissionDenied},
		{"new assignee not on team", TaskUpdate{AssignedToID: uintPtr(gusID), TeamID: &platform}, ErrInvalidInput},
		{"team the assignee is not on", TaskUpdate{TeamID: &ops}, ErrInvalidInput},
	}
	for _, tt := range denied {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateTask(ctx, bobID, 2, tt.upd)
			assert.ErrorIs(t, err, tt.want)

			last := f.lastLog(t)
			assert.Equal(t, ActionUpdate, last.Action)
			assert.False(t, last.Success)

			task, err := f.svc.findTask(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, bobID, task.AssignedToID)
			assert.Nil(t, task.TeamID)
		})
	}

	t.Run("non-manager creator cannot hand off", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, erinID, 3, TaskUpdate{AssignedToID: uintPtr(gusID)})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("direct report on the team", func(t *testing.T) {
		task, err := f.svc.UpdateTask(ctx, bobID, 2, TaskUpdate{AssignedToID: uintPtr(aliceID), TeamID: &platform})
		require.NoError(t, err)
		assert.Equal(t, aliceID, task.AssignedToID)
		require.NotNil(t, task.TeamID)
		assert.Equal(t, platformTeam, *task.TeamID)
		assert.True(t, f.lastLog(t).Success)
	})

	t.Run("team change for the current assignee", func(t *testing.T) {
		task, err := f.svc.UpdateTask(ctx, bobID, 5, TaskUpdate{TeamID: &platform})
		require.NoError(t, err)
		assert.Equal(t, hankID, task.AssignedToID)
	})
}

func TestViewTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.ViewTask(ctx, erinID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Expense report", task.Title)

	_, err = f.svc.ViewTask(ctx, hankID, 3)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
