package models

import "time"

type JobStatus string

const (
	JobDraft    JobStatus = "draft"
	JobActive   JobStatus = "active"
	JobClosed   JobStatus = "closed"
	JobArchived JobStatus = "archived"
)

type Job struct {
	ID              int
	Title           string
	Company         string
	Status          JobStatus
	RequiredSkills  []string
	PreferredSkills []string
	MatchedStudents []MatchResult
	MatchCount      int
	LastMatchedAt   *time.Time
}

func (j *Job) IsActive() bool {
	return j.Status == JobActive
}

// MatchResult is one surviving candidate persisted on the job. The whole list
// is replaced on every run.
type MatchResult struct {
	StudentID     string
	MatchScore    int
	MatchReason   string
	SkillsMatched []string
	SkillsMissing []string
	LastUpdated   time.Time
}
