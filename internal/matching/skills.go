package matching

import (
	"sort"
	"strings"
)

// Normalize lower-cases and trims a skill token.
func Normalize(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// SkillsMatch reports whether two skills name the same thing: equal after
// normalization, or one is a substring of the other ("react" vs "react.js").
func SkillsMatch(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// SkillSet is a de-duplicated set of normalized, non-empty skill tokens.
type SkillSet map[string]struct{}

func NewSkillSet(lists ...[]string) SkillSet {
	set := SkillSet{}
	for _, list := range lists {
		set.Add(list...)
	}
	return set
}

func (s SkillSet) Add(skills ...string) {
	for _, skill := range skills {
		if token := Normalize(skill); token != "" {
			s[token] = struct{}{}
		}
	}
}

// Has is an exact lookup on the normalized form.
func (s SkillSet) Has(skill string) bool {
	_, ok := s[Normalize(skill)]
	return ok
}

// Contains is a fuzzy lookup using SkillsMatch against every member.
func (s SkillSet) Contains(skill string) bool {
	if s.Has(skill) {
		return true
	}
	for token := range s {
		if SkillsMatch(token, skill) {
			return true
		}
	}
	return false
}

func (s SkillSet) Values() []string {
	values := make([]string, 0, len(s))
	for token := range s {
		values = append(values, token)
	}
	sort.Strings(values)
	return values
}

// DedupSkills drops empty entries and repeats (by normalized form), keeping
// the first spelling and the original order.
func DedupSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	result := make([]string, 0, len(skills))
	for _, skill := range skills {
		token := Normalize(skill)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, strings.TrimSpace(skill))
	}
	return result
}
