package merge

import (
	"sort"

	"github.com/david/contract-ledger/internal/models"
)

// DefaultTolerance is the score band below the best fuzzy match within which
// every candidate is still treated as a target.
const DefaultTolerance = 5.0

type Matcher struct {
	Tolerance float64
}

// Match holds the positions of matched clauses in the slice passed to
// Matcher.Match. Scores is parallel to Indices and set only for fuzzy matches.
type Match struct {
	Indices []int
	Scores  []float64
	Fuzzy   bool
}

// Ambiguous reports a fuzzy match that fanned out to several clauses.
func (m Match) Ambiguous() bool {
	return m.Fuzzy && len(m.Indices) > 1
}

func (m Match) Empty() bool {
	return len(m.Indices) == 0
}

// Match resolves a change target against clauses.
//
// A clause_id matches exactly and yields at most one clause. Otherwise
// candidates are filtered by type; an empty target scope returns them all,
// and a non-empty one returns every candidate scoring within Tolerance of
// the best token-set score.
func (m Matcher) Match(clauses []models.Clause, target models.ChangeTarget) Match {
	if target.ClauseID != "" {
		for i, c := range clauses {
			if c.ID == target.ClauseID {
				return Match{Indices: []int{i}}
			}
		}
		return Match{}
	}

	var candidates []int
	for i, c := range clauses {
		if target.Type == "" || string(c.Type) == target.Type {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Match{}
	}

	targetSig := models.ScopeSignature(target.Scope)
	if targetSig == "" {
		return Match{Indices: candidates}
	}

	type scored struct {
		idx   int
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for _, i := range candidates {
		results = append(results, scored{idx: i, score: TokenSetRatio(targetSig, models.ScopeSignature(clauses[i].Scope))})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})

	cutoff := results[0].score - m.Tolerance
	out := Match{Fuzzy: true}
	for _, r := range results {
		if r.score < cutoff {
			break
		}
		out.Indices = append(out.Indices, r.idx)
		out.Scores = append(out.Scores, r.score)
	}
	return out
}
