package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	amountRegex    = regexp.MustCompile(`\d{1,3}(?:[.,\s]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?`)
	dongSuffix     = regexp.MustCompile(`\d\s*đ(?:$|[^\p{L}])`)
	trailingDigits = regexp.MustCompile(`[.,](\d+)$`)
)

var (
	millionWords  = []string{"triệu", "tr", "million"}
	thousandWords = []string{"nghìn", "ngàn", "k"}
)

// detectCurrency returns the ISO code named in text, or "".
func detectCurrency(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "€") || strings.Contains(t, "eur"):
		return "EUR"
	case strings.Contains(t, "$") || strings.Contains(t, "usd"):
		return "USD"
	case strings.Contains(t, "vnd") || strings.Contains(t, "vnđ") || strings.Contains(t, "₫") ||
		strings.Contains(t, "đồng") || dongSuffix.MatchString(t):
		return "VND"
	}
	return ""
}

// parseAmountRobust reads a single money amount such as "1.200.000 VND",
// "1,5 triệu", "850k" or "USD 85.50". The currency falls back to
// defaultCurrency when text names none.
func parseAmountRobust(text string, defaultCurrency string) (float64, string, bool) {
	currency := detectCurrency(text)
	if currency == "" {
		currency = defaultCurrency
	}

	loc := amountRegex.FindStringIndex(text)
	if loc == nil {
		return 0, currency, false
	}
	value, ok := parseNumber(text[loc[0]:loc[1]])
	if !ok {
		return 0, currency, false
	}

	after := strings.ToLower(strings.TrimSpace(text[loc[1]:]))
	switch {
	case startsWithWord(after, millionWords):
		value *= 1_000_000
	case startsWithWord(after, thousandWords):
		value *= 1_000
	}
	return value, currency, true
}

// startsWithWord reports whether s begins with one of words as a whole word.
func startsWithWord(s string, words []string) bool {
	for _, w := range words {
		if !strings.HasPrefix(s, w) {
			continue
		}
		rest := []rune(s[len(w):])
		if len(rest) == 0 || !unicode.IsLetter(rest[0]) {
			return true
		}
	}
	return false
}

// parseNumber resolves "." and "," as thousands or decimal separators.
// When both appear the last one is the decimal point. A lone separator
// followed by exactly three digits groups thousands.
func parseNumber(s string) (float64, bool) {
	s = strings.Join(strings.Fields(s), "")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		m := trailingDigits.FindStringSubmatch(s)
		if strings.Count(s, sep) > 1 || (m != nil && len(m[1]) == 3) {
			s = strings.ReplaceAll(s, sep, "")
		} else {
			s = strings.Replace(s, sep, ".", 1)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
