package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"plansync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBulkSyncsAllPhases(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()
	fix.connect(7)

	fix.store.clients[2] = &models.Client{ID: 2, Name: "Acme Corp"}
	fix.store.projects[3] = &models.Project{ID: 3, Name: "Acme Website Redesign", CommonName: "Acme", ClientID: int64ptr(2)}

	fix.seedTask(models.Task{ID: 1, UserID: 7, Date: day(2024, time.June, 10), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})
	fix.seedTask(models.Task{ID: 2, UserID: 7, Date: day(2024, time.June, 11), Type: models.TaskTypeProject, ProjectID: int64ptr(3), Description: "wireframes"})
	fix.seedTask(models.Task{ID: 3, UserID: 7, Date: day(2024, time.June, 28), Type: models.TaskTypeMilestone, ProjectID: int64ptr(3)})

	job, err := fix.tracker.Create(ctx, 7)
	require.NoError(t, err)
	fix.engine.runBulk(ctx, job.ID, 7)

	got, err := fix.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.Errors)
	assert.Equal(t, 3, got.Progress.TasksSeen)
	assert.Equal(t, 2, got.Progress.PlanningSynced)
	assert.Equal(t, 1, got.Progress.DeadlinesSynced)
	assert.Equal(t, 0, got.Progress.EventsRemoved)

	require.Len(t, fix.session.events, 3)
	subjects := make(map[string]bool)
	for _, event := range fix.session.events {
		subjects[event.Subject] = true
	}
	assert.True(t, subjects["PTO"])
	assert.True(t, subjects["Acme"])
	assert.True(t, subjects["Milestone - Acme"])

	for _, id := range []int64{1, 2, 3} {
		task, err := fix.store.GetTask(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, task.EventID, "task %d has no reference", id)
		assert.Contains(t, fix.session.events, *task.EventID)
	}
}

func TestStartBulkReturnsJobImmediately(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()
	fix.connect(7)
	fix.seedTask(models.Task{ID: 1, UserID: 7, Date: day(2024, time.June, 10), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})

	jobID, err := fix.engine.StartBulk(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, err := fix.tracker.Get(ctx, jobID)
		return err == nil && job.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	job, err := fix.tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Progress.PlanningSynced)
}

func TestRunBulkNotConnected(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	job, err := fix.tracker.Create(ctx, 7)
	require.NoError(t, err)
	fix.engine.runBulk(ctx, job.ID, 7)

	got, err := fix.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Errors, "calendar not connected")
}

func TestRunBulkRecreatesVanishedBatchMember(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()
	fix.connectWithCalendar(7, "cal-1")

	// Twenty referenced tasks; one remote event has vanished behind the
	// engine's back.
	for i := 1; i <= 20; i++ {
		ref := fmt.Sprintf("old-%d", i)
		if i != 13 {
			fix.session.addEvent(ref, "PTO")
		}
		fix.seedTask(models.Task{ID: int64(i), UserID: 7, Date: day(2024, time.June, i), Type: models.TaskTypeStatus, Label: models.StatusTimeOff, EventID: strptr(ref)})
	}

	job, err := fix.tracker.Create(ctx, 7)
	require.NoError(t, err)
	fix.engine.runBulk(ctx, job.ID, 7)

	got, err := fix.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.Errors, "a recreated event is not an error")
	assert.Equal(t, 20, got.Progress.TasksSeen)
	assert.Equal(t, 20, got.Progress.PlanningSynced)

	assert.Len(t, fix.session.events, 20)
	task, err := fix.store.GetTask(ctx, 13)
	require.NoError(t, err)
	require.NotNil(t, task.EventID)
	assert.NotEqual(t, "old-13", *task.EventID)
	assert.Contains(t, fix.session.events, *task.EventID)

	// One round trip for the twenty updates, one for the single recreate.
	assert.Equal(t, 2, fix.session.batchCalls)
}

func TestRunBulkFallsBackWhenBatchFails(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()
	fix.connect(7)
	fix.session.batchErr = errors.New("batch endpoint down")

	for i := 1; i <= 3; i++ {
		fix.seedTask(models.Task{ID: int64(i), UserID: 7, Date: day(2024, time.June, i), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})
	}

	job, err := fix.tracker.Create(ctx, 7)
	require.NoError(t, err)
	fix.engine.runBulk(ctx, job.ID, 7)

	got, err := fix.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.Errors)
	assert.Equal(t, 3, got.Progress.PlanningSynced)
	assert.Len(t, fix.session.events, 3)
	assert.Equal(t, 1, fix.session.batchCalls)
	assert.Equal(t, 3, fix.session.createCalls)
}

func TestRunBulkCollectsPerItemErrors(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()
	fix.connect(7)

	fix.seedTask(models.Task{ID: 1, UserID: 7, Date: day(2024, time.June, 10), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})
	// Project 99 does not exist, so task 2 cannot be mapped.
	fix.seedTask(models.Task{ID: 2, UserID: 7, Date: day(2024, time.June, 11), Type: models.TaskTypeProject, ProjectID: int64ptr(99)})

	job, err := fix.tracker.Create(ctx, 7)
	require.NoError(t, err)
	fix.engine.runBulk(ctx, job.ID, 7)

	got, err := fix.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "task 2")
	assert.Equal(t, 2, got.Progress.TasksSeen)
	assert.Equal(t, 1, got.Progress.PlanningSynced)
	assert.Len(t, fix.session.events, 1)
}
