package decision

import "strings"

// The UPDATE-vs-SUPERSEDE distinction uses lexical heuristics: a candidate
// supersedes the incumbent when it carries an explicit contradiction signal,
// and updates it when it extends the incumbent's tokens without one. Neither
// signal means the candidate adds nothing and the engine answers NOOP.

var negationTokens = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"don't":   true,
	"dont":    true,
	"doesn't": true,
	"doesnt":  true,
	"isn't":   true,
	"isnt":    true,
	"aren't":  true,
	"arent":   true,
	"wasn't":  true,
	"wasnt":   true,
	"weren't": true,
	"werent":  true,
	"won't":   true,
	"wont":    true,
	"can't":   true,
	"cant":    true,
	"stopped": true,
	"quit":    true,
}

var opposingPairs = [][2]string{
	{"love", "hate"},
	{"like", "dislike"},
	{"best", "worst"},
	{"prefer", "avoid"},
	{"always", "never"},
	{"light", "dark"},
	{"enable", "disable"},
	{"enabled", "disabled"},
	{"start", "stop"},
	{"more", "less"},
	{"good", "bad"},
}

var correctionMarkers = []string{
	"actually",
	"correction",
	"instead",
	"no longer",
	"not anymore",
	"changed to",
	"switched to",
}

func tokenize(s string) []string {
	lower := strings.ToLower(s)
	return strings.FieldsFunc(lower, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '\'':
			return false
		default:
			return true
		}
	})
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

// contradicts reports whether the candidate content conflicts with the
// incumbent content: a negation token appearing on only one side, an
// opposing-sentiment pair split across the two, or a correction marker
// opening the candidate.
func contradicts(incumbent, candidate string) bool {
	candLower := strings.ToLower(candidate)
	for _, marker := range correctionMarkers {
		if strings.Contains(candLower, marker) {
			return true
		}
	}

	incSet := tokenSet(tokenize(incumbent))
	candSet := tokenSet(tokenize(candidate))

	for tok := range negationTokens {
		if candSet[tok] != incSet[tok] {
			return true
		}
	}

	for _, pair := range opposingPairs {
		if incSet[pair[0]] && candSet[pair[1]] {
			return true
		}
		if incSet[pair[1]] && candSet[pair[0]] {
			return true
		}
	}

	return false
}

// refines reports whether the candidate is a strict extension of the
// incumbent: it covers every incumbent token and brings new ones of its own.
func refines(incumbent, candidate string) bool {
	incTokens := tokenize(incumbent)
	candSet := tokenSet(tokenize(candidate))

	for _, tok := range incTokens {
		if !candSet[tok] {
			return false
		}
	}
	return len(candSet) > len(tokenSet(incTokens))
}
