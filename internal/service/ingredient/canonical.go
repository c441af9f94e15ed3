package ingredient

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	nonWordPattern  = regexp.MustCompile(`[^a-z0-9\s-]`)
	esPluralPattern = regexp.MustCompile(`(sh|ch|x|z|s|o)es$`)
)

var stopWords = map[string]struct{}{
	"fresh": {}, "organic": {}, "diced": {}, "chopped": {}, "minced": {}, "sliced": {},
	"julienned": {}, "peeled": {}, "crushed": {}, "ground": {}, "whole": {}, "large": {},
	"small": {}, "extra": {}, "virgin": {}, "optional": {}, "to": {}, "taste": {},
}

var synonyms = map[string]string{
	"scallion":       "green onion",
	"scallions":      "green onion",
	"spring onion":   "green onion",
	"garbanzo":       "chickpea",
	"garbanzo bean":  "chickpea",
	"garbanzo beans": "chickpea",
	"cilantro":       "coriander",
}

// Canonicalize reduces a raw ingredient name to its catalog form: descriptive words are
// dropped, tokens singularized, synonyms collapsed and the result capitalized.
// It returns "" when nothing is left. Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(raw string) string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(raw), " ")

	var tokens []string
	for _, token := range strings.Fields(cleaned) {
		if isStopWord(token) {
			continue
		}
		token = singularize(token)
		if isStopWord(token) {
			continue
		}
		tokens = append(tokens, token)
	}

	joined := strings.Join(tokens, " ")
	if joined == "" {
		return ""
	}
	if syn, ok := synonyms[joined]; ok {
		joined = syn
	}
	return capitalizeFirst(joined)
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// singularize strips plural suffixes until none applies
func singularize(word string) string {
	for {
		next := singularizeOnce(word)
		if next == word {
			return word
		}
		word = next
	}
}

func singularizeOnce(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case esPluralPattern.MatchString(word) && len(word) > 3:
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 2:
		return word[:len(word)-1]
	}
	return word
}

// capitalizeFirst lowercases s and upper-cases its first letter
func capitalizeFirst(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// editDistance is the Levenshtein distance between a and b compared case-insensitively
func editDistance(a, b string) int {
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}

// similarity is 1 - distance/maxLen, with 1 for two empty strings
func similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(maxLen)
}
