package merge

import (
	"sort"
	"strings"
)

// TokenSetRatio scores two strings 0-100 by comparing their token sets,
// ignoring token order and duplicates. Tokens are split on whitespace only,
// so a scope signature like "channel:ota|room_type:deluxe" is a single
// token. A string whose tokens are a subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, diffAB, diffBA []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter = append(inter, tok)
		} else {
			diffAB = append(diffAB, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			diffBA = append(diffBA, tok)
		}
	}
	if len(inter) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}
	sort.Strings(inter)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	sect := strings.Join(inter, " ")
	ab := strings.Join(diffAB, " ")
	ba := strings.Join(diffBA, " ")

	if sect == "" {
		return ratio(ab, ba)
	}
	sectLen := runeLen(sect)
	abLen := runeLen(ab)
	baLen := runeLen(ba)
	// one joining space between sect and each difference
	const sep = 1
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	// "sect ab" vs "sect ba" share the sect prefix, so their indel distance
	// is the distance between the differences alone.
	result := normalizedSimilarity(indelDistance(ab, ba), sectABLen+sectBALen)

	sectVsAB := normalizedSimilarity(sep+abLen, sectLen+sectABLen)
	sectVsBA := normalizedSimilarity(sep+baLen, sectLen+sectBALen)
	return max(result, sectVsAB, sectVsBA)
}

// ratio is the normalized indel similarity of two strings, 0-100.
func ratio(a, b string) float64 {
	return normalizedSimilarity(indelDistance(a, b), runeLen(a)+runeLen(b))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func normalizedSimilarity(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(lensum))
}

// indelDistance counts insertions plus deletions turning a into b.
func indelDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	return len(ra) + len(rb) - 2*lcsLen(ra, rb)
}

func lcsLen(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func runeLen(s string) int {
	return len([]rune(s))
}
