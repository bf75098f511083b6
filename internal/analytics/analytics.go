// Package analytics computes read-only coverage summaries over a
// learning map's hexes.
package analytics

import (
	"sort"
	"strings"

	"learningmap/api/internal/hexmap"
)

// Gaps counts resource-linked hexes that are missing curriculum
// tagging. Only hexes with a linkUrl are considered: an activity that
// points at a resource is expected to be tagged.
type Gaps struct {
	LinkNoSBAR         int `json:"linkNoSbar"`
	LinkNoStandards    int `json:"linkNoStandards"`
	LinkNoCompetencies int `json:"linkNoCompetencies"`
}

// Summary is the aggregate view the dashboard renders after every map
// mutation.
type Summary struct {
	TotalHexes    int            `json:"totalHexes"`
	CountsByType  map[string]int `json:"countsByType"`
	CountsBySBAR  map[string]int `json:"countsBySBAR"`
	Standards     []string       `json:"standards"`
	Competencies  []string       `json:"competencies"`
	ATLSkills     []string       `json:"atlSkills"`
	LinkedCount   int            `json:"linkedCount"`
	UnlinkedCount int            `json:"unlinkedCount"`
	HasUbD        bool           `json:"hasUbD"`
	Gaps          Gaps           `json:"gaps"`
}

// Compute aggregates m into a Summary. It tolerates raw, un-normalized
/// maps: every nested access falls back to an empty default, and
// unknown hex types get their own bucket rather than an error.
func Compute(m hexmap.LearningMap) Summary {
	s := Summary{
		CountsByType: map[string]int{
			hexmap.HexTypeCore:    0,
			hexmap.HexTypeExt:     0,
			hexmap.HexTypeScaf:    0,
			hexmap.HexTypeStudent: 0,
			hexmap.HexTypeClass:   0,
		},
		CountsBySBAR: map[string]int{"K": 0, "T": 0, "C": 0},
	}

	standards := make(map[string]struct{})
	competencies := make(map[string]struct{})
	atlSkills := make(map[string]struct{})

	s.TotalHexes = len(m.Hexes)
	for _, h := range m.Hexes {
		s.CountsByType[strings.ToLower(h.Type)]++

		cur := h.Curriculum
		if cur == nil {
			cur = &hexmap.HexCurriculum{}
		}

		for _, code := range cur.SBARDomains {
			if bucket := sbarBucket(code); bucket != "" {
				s.CountsBySBAR[bucket]++
			}
		}
		for _, v := range cur.Standards {
			standards[v] = struct{}{}
		}
		for _, v := range cur.Competencies {
			competencies[v] = struct{}{}
		}
		for _, v := range cur.ATLSkills {
			atlSkills[v] = struct{}{}
		}

		if h.LinkURL != "" {
			s.LinkedCount++
			if len(cur.SBARDomains) == 0 {
				s.Gaps.LinkNoSBAR++
			}
			if len(cur.Standards) == 0 {
				s.Gaps.LinkNoStandards++
			}
			if len(cur.Competencies) == 0 {
				s.Gaps.LinkNoCompetencies++
			}
		} else {
			s.UnlinkedCount++
		}
	}

	s.Standards = sortedKeys(standards)
	s.Competencies = sortedKeys(competencies)
	s.ATLSkills = sortedKeys(atlSkills)
	s.HasUbD = hasUbD(m.UbdData)
	return s
}

// sbarBucket classifies a domain code into K, T or C. Classification
// is permissive by substring so vocabulary variants like "KU" and "TT"
// land in the right bucket; unrecognized codes return "".
func sbarBucket(code string) string {
	upper := strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.Contains(upper, "K"):
		return "K"
	case strings.Contains(upper, "T"):
		return "T"
	case upper == "C":
		return "C"
	default:
		return ""
	}
}

func hasUbD(u *hexmap.UbdData) bool {
	if u == nil {
		return false
	}
	return u.BigIdea != "" ||
		len(u.EssentialQuestions) > 0 ||
		u.Stage1Understandings != "" ||
		u.Stage3Plan != ""
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
