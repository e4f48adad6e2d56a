package matching

type Policy string

const (
	// TeamPolicy keeps anyone holding at least one required skill.
	TeamPolicy Policy = "team"
	// IndividualPolicy keeps candidates meeting the minimum match percentage.
	IndividualPolicy Policy = "individual"
)

func PolicyFor(coverage Coverage) Policy {
	if coverage.AllCovered {
		return TeamPolicy
	}
	return IndividualPolicy
}

type CandidateFilter struct {
	policy               Policy
	minSkillMatchPercent float64
}

func NewCandidateFilter(policy Policy, minSkillMatchPercent float64) *CandidateFilter {
	return &CandidateFilter{policy: policy, minSkillMatchPercent: minSkillMatchPercent}
}

func (f *CandidateFilter) Policy() Policy {
	return f.policy
}

// Include decides whether a scored candidate survives the run.
// A job without required skills has nothing to filter on, so everyone is kept.
func (f *CandidateFilter) Include(score Score, requiredCount int) bool {
	if requiredCount == 0 {
		return true
	}

	matched := len(score.SkillsMatched)
	if f.policy == TeamPolicy {
		return matched >= 1
	}
	return float64(matched)*100 >= f.minSkillMatchPercent*float64(requiredCount)
}
