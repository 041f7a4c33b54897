package match

import (
	"strings"
	"unicode"
)

// contextRadius is how many characters of recognized text surround a located match.
const contextRadius = 10

// Location is where a claimed value was found in the recognized text.
type Location struct {
	Match   string `json:"match"`
	FoundIn string `json:"found_in"`
}

// Locate finds needle in haystack ignoring case and returns the matched text
// with up to ten characters of context on each side. For dates the needle is
// also tried without spaces, without commas and without both.
func Locate(needle, haystack string, date bool) (Location, bool) {
	if strings.TrimSpace(needle) == "" || haystack == "" {
		return Location{}, false
	}

	candidates := []string{needle}
	if date {
		candidates = append(candidates,
			strings.ReplaceAll(needle, " ", ""),
			strings.ReplaceAll(needle, ",", ""),
			strings.ReplaceAll(strings.ReplaceAll(needle, " ", ""), ",", ""),
		)
	}

	hay := []rune(haystack)
	lowerHay := lowerRunes(hay)
	for _, candidate := range candidates {
		want := lowerRunes([]rune(candidate))
		if len(want) == 0 {
			continue
		}
		pos := indexRunes(lowerHay, want)
		if pos < 0 {
			continue
		}
		start := max(0, pos-contextRadius)
		end := min(len(hay), pos+len(want)+contextRadius)
		return Location{
			Match:   string(hay[pos : pos+len(want)]),
			FoundIn: "..." + string(hay[start:end]) + "...",
		}, true
	}
	return Location{}, false
}

// lowerRunes lowercases rune by rune so indexes line up with the input.
func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(hay, needle []rune) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		found := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}
