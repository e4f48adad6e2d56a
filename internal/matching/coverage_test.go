package matching

import (
	"testing"

	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func Test_AnalyzeCoverage_ComplementarySpecialists_AllCovered(t *testing.T) {
	job := models.Job{RequiredSkills: []string{"Python", "SQL"}}
	candidates := []models.Candidate{
		{ID: "a", Skills: []string{"Python"}},
		{ID: "b", Skills: []string{"SQL"}},
		{ID: "c", Skills: []string{"Figma"}},
	}

	coverage := AnalyzeCoverage(job, candidates)

	assert.True(t, coverage.AllCovered)
	assert.Empty(t, coverage.Uncovered)
	assert.Equal(t, TeamPolicy, PolicyFor(coverage))
}

func Test_AnalyzeCoverage_NobodyHasSkills_NotCovered(t *testing.T) {
	job := models.Job{RequiredSkills: []string{"Rust", "Zig", "Go"}}
	candidates := []models.Candidate{
		{ID: "a", Skills: []string{"Python"}},
		{ID: "b", Skills: []string{"SQL"}},
	}

	coverage := AnalyzeCoverage(job, candidates)

	assert.False(t, coverage.AllCovered)
	assert.Equal(t, []string{"Rust", "Zig", "Go"}, coverage.Uncovered)
	assert.Equal(t, IndividualPolicy, PolicyFor(coverage))
}

func Test_AnalyzeCoverage_UsesProjectTagsAndCertifications(t *testing.T) {
	job := models.Job{RequiredSkills: []string{"Kubernetes", "AWS", "Terraform"}}
	candidates := []models.Candidate{
		{ID: "a", Projects: []models.Project{{Tags: []string{"kubernetes"}}}},
		{ID: "b", Certifications: []models.Certification{{Name: "AWS Solutions Architect"}}},
		{ID: "c", Skills: []string{"terraform"}},
	}

	coverage := AnalyzeCoverage(job, candidates)

	assert.True(t, coverage.AllCovered)
	assert.Equal(t, 3, coverage.PoolSize)
}

func Test_AnalyzeCoverage_EmptyPopulation(t *testing.T) {
	coverage := AnalyzeCoverage(models.Job{RequiredSkills: []string{"Go"}}, nil)

	assert.False(t, coverage.AllCovered)
	assert.Equal(t, []string{"Go"}, coverage.Uncovered)
}
