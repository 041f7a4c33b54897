package match

import (
	"strings"
)

// nameQuorum is the fraction of name tokens that must be found for a partial match.
const nameQuorum = 0.6

var ignoredNameTokens = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "v": {},
	"of": {}, "the": {}, "and": {},
}

// MatchExact reports whether claim is a non-empty substring of haystack.
// Both values are expected to be normalized already.
func MatchExact(claim, haystack string) bool {
	return claim != "" && strings.Contains(haystack, claim)
}

// MatchDate compares a claimed birth date with recognized text after date normalization.
func MatchDate(claimedDate, recognizedText string) bool {
	return MatchExact(NormalizeDate(claimedDate), NormalizeDate(recognizedText))
}

// MatchName runs the tiered name match: whole-name containment with spacing
// and punctuation ignored, then first+last and first+initial+last
// combinations, then a token quorum.
func MatchName(claimedName, recognizedText string) bool {
	if MatchExact(NormalizeAlnum(claimedName), NormalizeAlnum(recognizedText)) {
		return true
	}
	name := NormalizeWords(claimedName)
	text := NormalizeWords(recognizedText)
	if name == "" || text == "" {
		return false
	}

	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return false
	}
	words := strings.Fields(text)

	if len(tokens) >= 2 {
		firstLast := tokens[0] + " " + tokens[len(tokens)-1]
		if strings.Contains(text, firstLast) || strings.Contains(withoutInitials(words), firstLast) {
			return true
		}
		if len(tokens) >= 3 {
			firstInitialLast := tokens[0] + " " + tokens[1][:1] + " " + tokens[2]
			if strings.Contains(text, firstInitialLast) {
				return true
			}
		}
	}

	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	matched := 0
	for _, tok := range tokens {
		if len(tok) > 3 {
			if strings.Contains(text, tok) || anyWordAffix(words, tok) {
				matched++
			}
			continue
		}
		if _, ok := wordSet[tok]; ok {
			matched++
		}
	}
	return float64(matched)/float64(len(tokens)) >= nameQuorum
}

// MatchIDNumber compares the digits of a claimed ID with recognized text,
// tolerating a misread at either end of long IDs and printed separators.
func MatchIDNumber(claimedID, recognizedText string) bool {
	digits := digitsOnly(claimedID)
	if digits == "" || recognizedText == "" {
		return false
	}

	projection := digitProjection(recognizedText)
	if strings.Contains(projection, digits) {
		return true
	}

	if len(digits) > 5 {
		if strings.Contains(projection, digits[:6]) || strings.Contains(projection, digits[len(digits)-6:]) {
			return true
		}
	}

	for _, rendering := range separatorRenderings(digits) {
		if len(rendering) > 3 && strings.Contains(recognizedText, rendering) {
			return true
		}
	}
	return false
}

func nameTokens(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(name) {
		if len(tok) <= 1 {
			continue
		}
		if _, skip := ignoredNameTokens[tok]; skip {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// withoutInitials drops single letter words so "john q doe" reads "john doe".
func withoutInitials(words []string) string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 1 {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func anyWordAffix(words []string, tok string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, tok) || strings.HasSuffix(w, tok) {
			return true
		}
	}
	return false
}

// separatorRenderings returns the ways an ID is commonly printed:
// 1234-567890, 1234 567890 and 1234 5678 90.
func separatorRenderings(digits string) []string {
	out := []string{digits}
	if len(digits) > 4 {
		out = append(out, digits[:4]+"-"+digits[4:], digits[:4]+" "+digits[4:])
	}
	var groups []string
	for i := 0; i < len(digits); i += 4 {
		end := i + 4
		if end > len(digits) {
			end = len(digits)
		}
		groups = append(groups, digits[i:end])
	}
	return append(out, strings.Join(groups, " "))
}
