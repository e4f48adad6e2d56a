package repositories

import (
	"context"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/entities"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type Students struct {
	db *gorm.DB
}

func NewStudentsRepository(db *gorm.DB) *Students {
	return &Students{db: db}
}

func (repo *Students) Add(ctx context.Context, student entities.Student) error {
	return repo.db.WithContext(ctx).Create(&student).Error
}

// Snapshot loads the whole candidate population with its projects,
// certifications and readiness history inside one read transaction.
func (repo *Students) Snapshot(ctx context.Context) ([]models.Candidate, error) {

	var students []entities.Student
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Preload("Projects", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
			Preload("Certifications", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
			Preload("ReadinessHistory", func(db *gorm.DB) *gorm.DB { return db.Order("recorded_at, id") }).
			Order("id").
			Find(&students).Error
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(students, func(s entities.Student, _ int) models.Candidate {
		return toCandidate(s)
	}), nil
}

func toCandidate(s entities.Student) models.Candidate {
	return models.Candidate{
		ID:     s.ID,
		Name:   s.Name,
		Skills: s.Skills,
		Projects: lo.Map(s.Projects, func(p entities.Project, _ int) models.Project {
			return models.Project{Title: p.Title, Tags: p.Tags, Verified: p.Verified}
		}),
		Certifications: lo.Map(s.Certifications, func(c entities.Certification, _ int) models.Certification {
			return models.Certification{Name: c.Name, Verified: c.Verified}
		}),
		CGPA:           s.CGPA,
		ReadinessScore: s.ReadinessScore,
		ReadinessHistory: lo.Map(s.ReadinessHistory, func(r entities.ReadinessRecord, _ int) models.ReadinessEntry {
			return models.ReadinessEntry{Score: r.Score, Timestamp: r.RecordedAt}
		}),
		CodingStreaks: models.CodingStreaks{Leetcode: s.LeetcodeStreak, Github: s.GithubStreak},
	}
}
