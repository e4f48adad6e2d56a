package models

import (
	"strings"
	"time"
)

type Project struct {
	Title    string
	Tags     []string
	Verified bool
}

type Certification struct {
	Name     string
	Verified bool
}

type ReadinessEntry struct {
	Score     int
	Timestamp time.Time
}

type CodingStreaks struct {
	Leetcode int
	Github   int
}

// Candidate is a read-only snapshot of a student profile taken when a run starts.
type Candidate struct {
	ID               string
	Name             string
	Skills           []string
	Projects         []Project
	Certifications   []Certification
	CGPA             *float64
	ReadinessScore   int
	ReadinessHistory []ReadinessEntry
	CodingStreaks    CodingStreaks
}

// AllSkills returns profile skills together with the tags of every project.
func (c *Candidate) AllSkills() []string {
	skills := make([]string, 0, len(c.Skills))
	skills = append(skills, c.Skills...)
	for _, project := range c.Projects {
		skills = append(skills, project.Tags...)
	}
	return skills
}

// Sanitize brings out-of-range values back into their documented bounds.
// Returns false when the candidate can't be scored at all.
func (c *Candidate) Sanitize() bool {
	if strings.TrimSpace(c.ID) == "" {
		return false
	}

	if c.ReadinessScore < 0 {
		c.ReadinessScore = 0
	} else if c.ReadinessScore > 100 {
		c.ReadinessScore = 100
	}

	if c.CGPA != nil && (*c.CGPA < 0 || *c.CGPA > 10) {
		c.CGPA = nil
	}

	if c.CodingStreaks.Leetcode < 0 {
		c.CodingStreaks.Leetcode = 0
	}
	if c.CodingStreaks.Github < 0 {
		c.CodingStreaks.Github = 0
	}
	return true
}
