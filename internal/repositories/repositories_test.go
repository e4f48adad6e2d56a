package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/maxaizer/placement-matcher/internal/config"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDb(t *testing.T) *DbContext {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbCtx, err := NewDbContext(config.DBConfig{Driver: config.DriverSqlite, ConnectionString: dsn})
	require.NoError(t, err)
	require.NoError(t, dbCtx.Migrate())
	t.Cleanup(func() { _ = dbCtx.Close() })
	return dbCtx
}

func Test_Students_Snapshot_LoadsChildrenInOrder(t *testing.T) {
	dbCtx := newTestDb(t)
	students := NewStudentsRepository(dbCtx.DB)
	ctx := context.Background()
	cgpa := 8.5
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, students.Add(ctx, entities.Student{
		ID:             "b",
		Skills:         []string{"Go", "SQL"},
		CGPA:           &cgpa,
		ReadinessScore: 72,
		LeetcodeStreak: 4,
		Projects: []entities.Project{
			{Title: "api", Tags: []string{"Go"}, Verified: true},
		},
		Certifications: []entities.Certification{{Name: "AWS", Verified: true}},
		ReadinessHistory: []entities.ReadinessRecord{
			{Score: 70, RecordedAt: now.AddDate(0, 0, 2)},
			{Score: 50, RecordedAt: now},
			{Score: 60, RecordedAt: now.AddDate(0, 0, 1)},
		},
	}))
	require.NoError(t, students.Add(ctx, entities.Student{ID: "a", Skills: []string{"Python"}}))

	snapshot, err := students.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	assert.Equal(t, "a", snapshot[0].ID)
	assert.Nil(t, snapshot[0].CGPA)

	b := snapshot[1]
	assert.Equal(t, []string{"Go", "SQL"}, b.Skills)
	assert.Equal(t, 8.5, *b.CGPA)
	assert.Equal(t, 4, b.CodingStreaks.Leetcode)
	assert.Equal(t, []models.Project{{Title: "api", Tags: []string{"Go"}, Verified: true}}, b.Projects)
	assert.Equal(t, []models.Certification{{Name: "AWS", Verified: true}}, b.Certifications)
	require.Len(t, b.ReadinessHistory, 3)
	assert.Equal(t, []int{50, 60, 70}, []int{
		b.ReadinessHistory[0].Score, b.ReadinessHistory[1].Score, b.ReadinessHistory[2].Score,
	})
}

func Test_Jobs_ReplaceMatches_ReplacesWholeList(t *testing.T) {
	dbCtx := newTestDb(t)
	jobs := NewJobsRepository(dbCtx.DB)
	ctx := context.Background()

	job := &entities.Job{Title: "Backend", Status: string(models.JobActive), RequiredSkills: []string{"Go"}}
	require.NoError(t, jobs.Add(ctx, job))

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.ReplaceMatches(ctx, job.ID, []models.MatchResult{
		{StudentID: "a", MatchScore: 90, MatchReason: "r1", SkillsMatched: []string{"Go"}, LastUpdated: first},
		{StudentID: "b", MatchScore: 40, MatchReason: "r2", SkillsMissing: []string{"Go"}, LastUpdated: first},
	}, first))

	second := first.Add(time.Hour)
	require.NoError(t, jobs.ReplaceMatches(ctx, job.ID, []models.MatchResult{
		{StudentID: "c", MatchScore: 70, MatchReason: "r3", LastUpdated: second},
	}, second))

	matches, err := jobs.GetMatches(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].StudentID)

	stored, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.MatchCount)
	require.NotNil(t, stored.LastMatchedAt)
	assert.True(t, second.Equal(*stored.LastMatchedAt))
}

func Test_Jobs_ReplaceMatches_KeepsOrder(t *testing.T) {
	dbCtx := newTestDb(t)
	jobs := NewJobsRepository(dbCtx.DB)
	ctx := context.Background()

	job := &entities.Job{Title: "Backend", Status: string(models.JobActive)}
	require.NoError(t, jobs.Add(ctx, job))

	now := time.Now()
	require.NoError(t, jobs.ReplaceMatches(ctx, job.ID, []models.MatchResult{
		{StudentID: "z", MatchScore: 90, LastUpdated: now},
		{StudentID: "a", MatchScore: 80, LastUpdated: now},
		{StudentID: "m", MatchScore: 70, LastUpdated: now},
	}, now))

	matches, err := jobs.GetMatches(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, []string{matches[0].StudentID, matches[1].StudentID, matches[2].StudentID})
}

func Test_Jobs_ReplaceMatches_JobRemovedOrInactive(t *testing.T) {
	dbCtx := newTestDb(t)
	jobs := NewJobsRepository(dbCtx.DB)
	ctx := context.Background()

	closed := &entities.Job{Title: "Closed", Status: string(models.JobActive)}
	removed := &entities.Job{Title: "Removed", Status: string(models.JobActive)}
	require.NoError(t, jobs.Add(ctx, closed))
	require.NoError(t, jobs.Add(ctx, removed))

	require.NoError(t, jobs.UpdateStatus(ctx, closed.ID, models.JobClosed))
	require.NoError(t, jobs.Remove(ctx, removed.ID))

	results := []models.MatchResult{{StudentID: "a", MatchScore: 50, LastUpdated: time.Now()}}
	assert.ErrorIs(t, jobs.ReplaceMatches(ctx, closed.ID, results, time.Now()), ErrJobGone)
	assert.ErrorIs(t, jobs.ReplaceMatches(ctx, removed.ID, results, time.Now()), ErrJobGone)
	assert.ErrorIs(t, jobs.ReplaceMatches(ctx, 999, results, time.Now()), ErrJobGone)

	matches, err := jobs.GetMatches(ctx, closed.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	gone, err := jobs.GetByID(ctx, removed.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func Test_Jobs_GetActive_Pages(t *testing.T) {
	dbCtx := newTestDb(t)
	jobs := NewJobsRepository(dbCtx.DB)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		status := models.JobActive
		if i == 2 {
			status = models.JobDraft
		}
		require.NoError(t, jobs.Add(ctx, &entities.Job{Title: fmt.Sprintf("job %d", i), Status: string(status)}))
	}

	page1, err := jobs.GetActive(ctx, 3, 0)
	require.NoError(t, err)
	page2, err := jobs.GetActive(ctx, 3, 3)
	require.NoError(t, err)

	assert.Len(t, page1, 3)
	assert.Len(t, page2, 1)
	for _, job := range append(page1, page2...) {
		assert.True(t, job.IsActive())
	}
}

func Test_Jobs_GetUnmatchedActive(t *testing.T) {
	dbCtx := newTestDb(t)
	jobs := NewJobsRepository(dbCtx.DB)
	ctx := context.Background()
	matchedAt := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	fresh := &entities.Job{Title: "fresh", Status: string(models.JobActive)}
	matched := &entities.Job{Title: "matched", Status: string(models.JobActive), LastMatchedAt: &matchedAt}
	draft := &entities.Job{Title: "draft", Status: string(models.JobDraft)}
	second := &entities.Job{Title: "second", Status: string(models.JobActive)}
	for _, job := range []*entities.Job{fresh, matched, draft, second} {
		require.NoError(t, jobs.Add(ctx, job))
	}

	unmatched, err := jobs.GetUnmatchedActive(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, unmatched, 2)
	assert.Equal(t, fresh.ID, unmatched[0].ID)
	assert.Equal(t, second.ID, unmatched[1].ID)

	limited, err := jobs.GetUnmatchedActive(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, fresh.ID, limited[0].ID)

	limited, err = jobs.GetUnmatchedActive(ctx, 1, []int{fresh.ID})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)

	require.NoError(t, jobs.ReplaceMatches(ctx, fresh.ID, nil, matchedAt))
	unmatched, err = jobs.GetUnmatchedActive(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, second.ID, unmatched[0].ID)
}
