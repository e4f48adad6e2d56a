package matching

import (
	"math"

	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/samber/lo"
)

// Breakdown is the per-category contribution before the minimum floor.
// When FloorApplied is set, the categories don't sum to Score.Total.
type Breakdown struct {
	RequiredSkills  float64 `json:"requiredSkills"`
	PreferredSkills float64 `json:"preferredSkills"`
	Projects        float64 `json:"projects"`
	Readiness       float64 `json:"readiness"`
	Growth          float64 `json:"growth"`
	CGPA            float64 `json:"cgpa"`
	Certifications  float64 `json:"certifications"`
	Coding          float64 `json:"coding"`
	FloorApplied    bool    `json:"floorApplied"`
}

func (b Breakdown) Sum() float64 {
	return b.RequiredSkills + b.PreferredSkills + b.Projects + b.Readiness +
		b.Growth + b.CGPA + b.Certifications + b.Coding
}

type Score struct {
	Total            int
	Breakdown        Breakdown
	SkillsMatched    []string
	SkillsMissing    []string
	RelevantProjects int
}

type ScoreCalculator struct {
	weights Weights
}

func NewScoreCalculator(weights Weights) *ScoreCalculator {
	return &ScoreCalculator{weights: weights}
}

func (c *ScoreCalculator) Calculate(candidate models.Candidate, job models.Job) Score {
	w := c.weights
	required := DedupSkills(job.RequiredSkills)
	preferred := DedupSkills(job.PreferredSkills)
	skills := NewSkillSet(candidate.AllSkills())

	matched, missing := lo.FilterReject(required, func(skill string, _ int) bool {
		return skills.Contains(skill)
	})

	var b Breakdown

	if len(required) == 0 {
		b.RequiredSkills = w.RequiredDefault
	} else {
		b.RequiredSkills = float64(len(matched)) / float64(len(required)) * w.Required
	}

	if len(preferred) == 0 {
		b.PreferredSkills = w.PreferredDefault
	} else {
		matchedPreferred := lo.CountBy(preferred, func(skill string) bool { return skills.Contains(skill) })
		b.PreferredSkills = math.Min(float64(matchedPreferred)/float64(len(preferred))*w.Preferred, w.Preferred)
	}

	relevant := relevantProjects(candidate.Projects, required)
	b.Projects = c.projectScore(relevant)
	b.Readiness = float64(candidate.ReadinessScore) / 100 * w.Readiness
	b.Growth = c.growthScore(candidate)

	if candidate.CGPA == nil {
		b.CGPA = w.CGPADefault
	} else {
		b.CGPA = *candidate.CGPA / 10 * w.CGPA
	}

	verifiedCerts := lo.CountBy(candidate.Certifications, func(cert models.Certification) bool { return cert.Verified })
	b.Certifications = math.Min(float64(verifiedCerts)*w.CertPerVerified, w.CertCap)

	streak := max(candidate.CodingStreaks.Leetcode, candidate.CodingStreaks.Github)
	b.Coding = math.Min(float64(streak)/w.CodingDivisor, w.CodingCap)

	total := b.Sum()
	if len(required) > 0 && float64(len(matched))/float64(len(required)) >= w.FloorMatchRatio {
		floor := w.FloorBase + b.RequiredSkills/w.Required*w.FloorSpan
		if floor > total {
			total = floor
			b.FloorApplied = true
		}
	}

	return Score{
		Total:            int(math.Round(clamp(total, 0, 100))),
		Breakdown:        b,
		SkillsMatched:    matched,
		SkillsMissing:    missing,
		RelevantProjects: len(relevant),
	}
}

func (c *ScoreCalculator) projectScore(relevant []models.Project) float64 {
	w := c.weights
	verified := lo.CountBy(relevant, func(p models.Project) bool { return p.Verified })
	tags := NewSkillSet(lo.FlatMap(relevant, func(p models.Project, _ int) []string { return p.Tags }))

	return math.Min(float64(len(relevant))*w.ProjectPerRelevant, w.ProjectBaseCap) +
		math.Min(float64(verified)*w.ProjectPerVerified, w.ProjectVerifiedCap) +
		math.Min(float64(len(tags)), w.ProjectTagCap)
}

func (c *ScoreCalculator) growthScore(candidate models.Candidate) float64 {
	w := c.weights
	history := candidate.ReadinessHistory
	if len(history) >= w.GrowthWindow {
		window := history[len(history)-w.GrowthWindow:]
		delta := float64(window[len(window)-1].Score-window[0].Score) / w.GrowthDivisor
		return clamp(delta, 0, w.GrowthCap)
	}
	if candidate.ReadinessScore >= w.GrowthReadyThreshold {
		return w.GrowthReadyScore
	}
	return 0
}

// relevantProjects keeps projects with at least one tag matching a required skill.
func relevantProjects(projects []models.Project, required []string) []models.Project {
	return lo.Filter(projects, func(p models.Project, _ int) bool {
		return lo.SomeBy(p.Tags, func(tag string) bool {
			return lo.SomeBy(required, func(skill string) bool { return SkillsMatch(tag, skill) })
		})
	})
}

func clamp(value, low, high float64) float64 {
	return math.Max(low, math.Min(value, high))
}
