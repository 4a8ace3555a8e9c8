package ai

import (
	"strings"

	"github.com/david/contract-ledger/internal/models"
)

// CanonicalClauseType maps a model-produced clause type onto the closed set,
// ignoring case and separators ("no-show" → NoShow). ok is false for values
// outside the set.
func CanonicalClauseType(raw string) (models.ClauseType, bool) {
	allowed := make([]string, 0, len(models.ClauseTypes))
	for _, t := range models.ClauseTypes {
		allowed = append(allowed, string(t))
	}
	v, ok := canonicalise(raw, allowed)
	return models.ClauseType(v), ok
}

// CanonicalChangeType does the same for change kinds.
func CanonicalChangeType(raw string) (models.ChangeType, bool) {
	allowed := make([]string, 0, len(models.ChangeTypes))
	for _, t := range models.ChangeTypes {
		allowed = append(allowed, string(t))
	}
	v, ok := canonicalise(raw, allowed)
	return models.ChangeType(v), ok
}

func canonicalise(raw string, allowed []string) (string, bool) {
	t := strings.TrimSpace(raw)
	for _, a := range allowed {
		if a == t {
			return a, true
		}
	}
	// Models drift on case and word separators.
	squashed := squash(t)
	for _, a := range allowed {
		if strings.EqualFold(a, t) || strings.EqualFold(a, squashed) {
			return a, true
		}
	}
	return t, false
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, s)
}
