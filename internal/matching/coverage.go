package matching

import (
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/samber/lo"
)

type Coverage struct {
	// AllCovered is true when every required skill is held by someone in the population.
	AllCovered bool
	Uncovered  []string
	PoolSize   int
}

// AnalyzeCoverage pools the skills of the whole population (profile skills,
// project tags and certification names) and checks every required skill against it.
func AnalyzeCoverage(job models.Job, candidates []models.Candidate) Coverage {
	pool := SkillSet{}
	for _, candidate := range candidates {
		pool.Add(candidate.AllSkills()...)
		for _, cert := range candidate.Certifications {
			pool.Add(cert.Name)
		}
	}

	uncovered := lo.Reject(DedupSkills(job.RequiredSkills), func(skill string, _ int) bool {
		return pool.Contains(skill)
	})

	return Coverage{
		AllCovered: len(uncovered) == 0,
		Uncovered:  uncovered,
		PoolSize:   len(pool),
	}
}
