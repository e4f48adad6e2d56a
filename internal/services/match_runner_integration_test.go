package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/placement-matcher/internal/config"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/entities"
	"github.com/maxaizer/placement-matcher/internal/events"
	"github.com/maxaizer/placement-matcher/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type integrationEnv struct {
	dbCtx    *repositories.DbContext
	jobs     *repositories.Jobs
	students *repositories.Students
	bus      EventBus.Bus
	runner   *MatchRunner
}

func upEnvironment(t *testing.T) *integrationEnv {
	t.Helper()

	dbCtx, err := repositories.NewDbContext(config.DBConfig{
		Driver:           config.DriverSqlite,
		ConnectionString: filepath.Join(t.TempDir(), "testdatabase.db"),
	})
	require.NoError(t, err)
	require.NoError(t, dbCtx.Migrate())
	t.Cleanup(func() { _ = dbCtx.Close() })

	env := &integrationEnv{
		dbCtx:    dbCtx,
		jobs:     repositories.NewJobsRepository(dbCtx.DB),
		students: repositories.NewStudentsRepository(dbCtx.DB),
		bus:      EventBus.New(),
	}
	env.runner = NewMatchRunner(env.jobs, env.students, NewJustificationService(nil, testOptions()),
		NewLocalRunLock(), env.bus, DefaultMatchRunnerOptions())
	return env
}

func (env *integrationEnv) addStudents(t *testing.T, students ...entities.Student) {
	for _, student := range students {
		require.NoError(t, env.students.Add(context.Background(), student))
	}
}

func (env *integrationEnv) addJob(t *testing.T, job entities.Job) int {
	require.NoError(t, env.jobs.Add(context.Background(), &job))
	return job.ID
}

func Test_Integration_RunMatchPersistsAndReplaces(t *testing.T) {
	env := upEnvironment(t)
	ctx := context.Background()
	cgpa := 9.0

	env.addStudents(t,
		entities.Student{ID: "anna", Skills: []string{"Python"}, ReadinessScore: 80, CGPA: &cgpa,
			Projects: []entities.Project{{Title: "etl", Tags: []string{"python", "airflow"}, Verified: true}}},
		entities.Student{ID: "boris", Skills: []string{"SQL"}, ReadinessScore: 60},
		entities.Student{ID: "clara", Skills: []string{"Photoshop"}, ReadinessScore: 95},
	)
	jobID := env.addJob(t, entities.Job{Title: "Data intern", Status: string(models.JobActive),
		RequiredSkills: []string{"Python", "SQL"}})

	summary, err := env.runner.RunMatch(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MatchCount)

	matches, err := env.jobs.GetMatches(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "anna", matches[0].StudentID)
	assert.Equal(t, "boris", matches[1].StudentID)
	for _, match := range matches {
		assert.NotEmpty(t, match.MatchReason)
	}

	job, err := env.jobs.GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.MatchCount)
	require.NotNil(t, job.LastMatchedAt)

	// boris learns Python, clara stays irrelevant: the list is replaced, not appended
	require.NoError(t, env.dbCtx.DB.Model(&entities.Student{ID: "boris"}).
		Updates(entities.Student{Skills: []string{"SQL", "Python"}}).Error)

	summary, err = env.runner.RunMatch(ctx, jobID)
	require.NoError(t, err)

	matches, err = env.jobs.GetMatches(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, matches, summary.MatchCount)
	assert.Len(t, matches, 2)
	assert.Equal(t, "boris", matches[1].StudentID)
	assert.Equal(t, []string{"Python", "SQL"}, matches[1].SkillsMatched)
	assert.Empty(t, matches[1].SkillsMissing)
}

func Test_Integration_ClosedJobKeepsOldResults(t *testing.T) {
	env := upEnvironment(t)
	ctx := context.Background()

	env.addStudents(t, entities.Student{ID: "s1", Skills: []string{"Go"}})
	jobID := env.addJob(t, entities.Job{Title: "Go intern", Status: string(models.JobActive),
		RequiredSkills: []string{"Go"}})

	_, err := env.runner.RunMatch(ctx, jobID)
	require.NoError(t, err)

	require.NoError(t, env.jobs.UpdateStatus(ctx, jobID, models.JobClosed))
	env.addStudents(t, entities.Student{ID: "s2", Skills: []string{"Go"}})

	_, err = env.runner.RunMatch(ctx, jobID)
	assert.ErrorIs(t, err, repositories.ErrJobGone)

	matches, err := env.jobs.GetMatches(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func Test_Integration_PublishedJobIsMatchedByScheduler(t *testing.T) {
	env := upEnvironment(t)

	env.addStudents(t, entities.Student{ID: "s1", Skills: []string{"Kotlin"}})
	jobID := env.addJob(t, entities.Job{Title: "Android intern", Status: string(models.JobActive),
		RequiredSkills: []string{"Kotlin"}})

	finished := make(chan events.MatchRunFinished, 1)
	require.NoError(t, env.bus.Subscribe(events.MatchRunFinishedTopic, func(e events.MatchRunFinished) {
		finished <- e
	}))

	scheduler, err := NewMatchScheduler(env.runner, env.bus, "0 */6 * * *")
	require.NoError(t, err)
	defer scheduler.Stop()

	env.bus.Publish(events.JobPublishedTopic, events.JobPublished{JobID: jobID})

	select {
	case e := <-finished:
		assert.Equal(t, jobID, e.JobID)
		assert.Equal(t, 1, e.MatchCount)
	case <-time.After(5 * time.Second):
		t.Fatal("match run wasn't finished")
	}
}

func Test_Integration_RefreshCoversEveryActiveJob(t *testing.T) {
	env := upEnvironment(t)
	ctx := context.Background()

	env.addStudents(t, entities.Student{ID: "s1", Skills: []string{"Go", "SQL"}})
	active := make([]int, 0, 25)
	for i := 0; i < 25; i++ {
		active = append(active, env.addJob(t, entities.Job{Title: "job", Status: string(models.JobActive),
			RequiredSkills: []string{"Go"}}))
	}
	draftID := env.addJob(t, entities.Job{Title: "draft", Status: string(models.JobDraft),
		RequiredSkills: []string{"Go"}})

	require.NoError(t, env.runner.RefreshAllActiveJobs(ctx))

	for _, jobID := range active {
		job, err := env.jobs.GetByID(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, 1, job.MatchCount)
	}
	draft, err := env.jobs.GetByID(ctx, draftID)
	require.NoError(t, err)
	assert.Nil(t, draft.LastMatchedAt)
}

func Test_Integration_WatcherPublishesNewJobsUntilMatched(t *testing.T) {
	env := upEnvironment(t)
	ctx := context.Background()

	env.addStudents(t, entities.Student{ID: "s1", Skills: []string{"Rust"}})
	jobID := env.addJob(t, entities.Job{Title: "Systems intern", Status: string(models.JobActive),
		RequiredSkills: []string{"Rust"}})

	finished := make(chan events.MatchRunFinished, 1)
	require.NoError(t, env.bus.Subscribe(events.MatchRunFinishedTopic, func(e events.MatchRunFinished) {
		finished <- e
	}))

	scheduler, err := NewMatchScheduler(env.runner, env.bus, "0 */6 * * *")
	require.NoError(t, err)
	defer scheduler.Stop()

	watcher, err := NewJobWatcher(env.jobs, env.runner, env.bus, time.Minute, 10)
	require.NoError(t, err)
	require.NoError(t, scheduler.Watch(watcher, "@every 1h"))

	watcher.Poll(ctx)

	select {
	case e := <-finished:
		assert.Equal(t, jobID, e.JobID)
		assert.Equal(t, 1, e.MatchCount)
	case <-time.After(5 * time.Second):
		t.Fatal("match run wasn't finished")
	}

	unmatched, err := env.jobs.GetUnmatchedActive(ctx, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, unmatched)

	watcher.Poll(ctx)
	env.bus.WaitAsync()
	select {
	case e := <-finished:
		t.Fatalf("matched job %d was run again", e.JobID)
	case <-time.After(100 * time.Millisecond):
	}
}
