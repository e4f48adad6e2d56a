package repositories

import (
	"context"
	"errors"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/entities"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"time"
)

// ErrJobGone is returned when a job was deleted or deactivated before its results were saved.
var ErrJobGone = errors.New("job was removed or deactivated")

type Jobs struct {
	db *gorm.DB
}

func NewJobsRepository(db *gorm.DB) *Jobs {
	return &Jobs{db: db}
}

func (repo *Jobs) Add(ctx context.Context, job *entities.Job) error {
	return repo.db.WithContext(ctx).Create(job).Error
}

// GetByID returns nil without an error when the job doesn't exist.
func (repo *Jobs) GetByID(ctx context.Context, id int) (*models.Job, error) {
	var job entities.Job
	if err := repo.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	result := toJob(job)
	return &result, nil
}

func (repo *Jobs) GetActive(ctx context.Context, limit int, offset int) ([]models.Job, error) {
	var jobs []entities.Job
	if err := repo.db.WithContext(ctx).
		Where("status = ?", string(models.JobActive)).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return lo.Map(jobs, func(j entities.Job, _ int) models.Job { return toJob(j) }), nil
}

// GetUnmatchedActive returns active jobs that were never matched, oldest first,
// leaving out the excluded ids.
func (repo *Jobs) GetUnmatchedActive(ctx context.Context, limit int, exclude []int) ([]models.Job, error) {
	var jobs []entities.Job
	query := repo.db.WithContext(ctx).
		Where("status = ? AND last_matched_at IS NULL", string(models.JobActive))
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	if err := query.
		Order("id").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return lo.Map(jobs, func(j entities.Job, _ int) models.Job { return toJob(j) }), nil
}

func (repo *Jobs) UpdateStatus(ctx context.Context, id int, status models.JobStatus) error {
	return repo.db.WithContext(ctx).Model(&entities.Job{}).Where("id = ?", id).
		Update("status", string(status)).Error
}

func (repo *Jobs) Remove(ctx context.Context, id int) error {
	return repo.db.WithContext(ctx).Delete(&entities.Job{ID: id}).Error
}

// ReplaceMatches swaps the job's whole match list in one transaction. Results are
// written in the given order. Fails with ErrJobGone when the job is no longer active.
func (repo *Jobs) ReplaceMatches(ctx context.Context, jobID int, results []models.MatchResult, matchedAt time.Time) error {

	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var job entities.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobGone
			}
			return err
		}
		if job.Status != string(models.JobActive) {
			return ErrJobGone
		}

		if err := tx.Where("job_id = ?", jobID).Delete(&entities.MatchResult{}).Error; err != nil {
			return err
		}

		rows := lo.Map(results, func(r models.MatchResult, i int) entities.MatchResult {
			return entities.MatchResult{
				JobID:         jobID,
				StudentID:     r.StudentID,
				Ranking:       i + 1,
				MatchScore:    r.MatchScore,
				MatchReason:   r.MatchReason,
				SkillsMatched: r.SkillsMatched,
				SkillsMissing: r.SkillsMissing,
				LastUpdated:   r.LastUpdated.UTC(),
			}
		})
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return err
			}
		}

		return tx.Model(&entities.Job{}).Where("id = ?", jobID).
			Updates(map[string]any{
				"match_count":     len(results),
				"last_matched_at": matchedAt.UTC(),
			}).Error
	})
}

func (repo *Jobs) GetMatches(ctx context.Context, jobID int) ([]models.MatchResult, error) {
	var rows []entities.MatchResult
	if err := repo.db.WithContext(ctx).Where("job_id = ?", jobID).Order("ranking").Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r entities.MatchResult, _ int) models.MatchResult {
		return models.MatchResult{
			StudentID:     r.StudentID,
			MatchScore:    r.MatchScore,
			MatchReason:   r.MatchReason,
			SkillsMatched: r.SkillsMatched,
			SkillsMissing: r.SkillsMissing,
			LastUpdated:   r.LastUpdated,
		}
	}), nil
}

func toJob(j entities.Job) models.Job {
	return models.Job{
		ID:              j.ID,
		Title:           j.Title,
		Company:         j.Company,
		Status:          models.JobStatus(j.Status),
		RequiredSkills:  j.RequiredSkills,
		PreferredSkills: j.PreferredSkills,
		MatchCount:      j.MatchCount,
		LastMatchedAt:   j.LastMatchedAt,
	}
}
