package entities

import (
	"gorm.io/gorm"
	"time"
)

type Job struct {
	ID              int
	Title           string
	Company         string
	Status          string   `gorm:"index"`
	RequiredSkills  []string `gorm:"serializer:json"`
	PreferredSkills []string `gorm:"serializer:json"`
	MatchCount      int
	LastMatchedAt   *time.Time
	MatchResults    []MatchResult `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

type MatchResult struct {
	ID            int
	JobID         int    `gorm:"index"`
	StudentID     string `gorm:"index"`
	Ranking       int
	MatchScore    int
	MatchReason   string
	SkillsMatched []string `gorm:"serializer:json"`
	SkillsMissing []string `gorm:"serializer:json"`
	LastUpdated   time.Time
}
