package constants

import (
	"strconv"
	"strings"
)

// Profile names a tesseract page segmentation mode used during extraction.
type Profile string

const (
	ProfileBlock  Profile = "block"  // psm 6: single uniform block of text
	ProfileColumn Profile = "column" // psm 4: single column of variable sizes
	ProfileSparse Profile = "sparse" // psm 11: sparse text, no particular order
)

var psmByProfile = map[Profile]int{
	ProfileBlock:  6,
	ProfileColumn: 4,
	ProfileSparse: 11,
}

// DefaultProfiles is the extraction order used when none is configured.
var DefaultProfiles = []Profile{ProfileBlock, ProfileColumn, ProfileSparse}

// PSM returns the tesseract --psm value for p.
func (p Profile) PSM() int {
	return psmByProfile[p]
}

func AsStringSlice(profiles []Profile) []string {
	result := make([]string, len(profiles))
	for i, p := range profiles {
		result[i] = string(p)
	}
	return result
}

// CanonicalizeProfile maps a profile name, synonym, or psm number to a Profile.
func CanonicalizeProfile(input string) (Profile, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Profile{
		"uniform":     ProfileBlock,
		"single":      ProfileColumn,
		"col":         ProfileColumn,
		"sparse_text": ProfileSparse,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	if n, err := strconv.Atoi(normalized); err == nil {
		for p, psm := range psmByProfile {
			if psm == n {
				return p, true
			}
		}
		return "", false
	}

	for _, p := range DefaultProfiles {
		if normalized == string(p) {
			return p, true
		}
	}
	return "", false
}

// ParseProfiles parses a comma separated list such as "block,column,11".
// Unknown entries are returned in the second value; duplicates are dropped.
func ParseProfiles(list string) ([]Profile, []string) {
	var out []Profile
	var unknown []string
	seen := make(map[Profile]struct{})
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, ok := CanonicalizeProfile(part)
		if !ok {
			unknown = append(unknown, strings.TrimSpace(part))
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, unknown
}
