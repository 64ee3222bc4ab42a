package arbiter

import "strings"

const (
	repetitionThreshold float32 = 0.30
	diversityThreshold  float32 = 0.12
)

// FreezeFlags are deterministic anomaly flags derived from a text payload.
type FreezeFlags struct {
	// Rep3p is set when adjacent 3-byte windows repeat too often.
	Rep3p bool `json:"rep_3p"`

	// Stall is set for empty text or very low byte diversity.
	Stall bool `json:"stall"`

	// AITell is set when boilerplate such as "as an AI" appears.
	AITell bool `json:"ai_tell"`
}

// Or returns the flag-wise OR of f and o.
func (f FreezeFlags) Or(o FreezeFlags) FreezeFlags {
	return FreezeFlags{
		Rep3p:  f.Rep3p || o.Rep3p,
		Stall:  f.Stall || o.Stall,
		AITell: f.AITell || o.AITell,
	}
}

// Any reports whether at least one flag is set.
func (f FreezeFlags) Any() bool {
	return f.Rep3p || f.Stall || f.AITell
}

// DetectFreeze computes freeze flags for text. It does not allocate.
//
// The text is trimmed first; an empty result is a stall and nothing else is
// checked. Repetition walks the bytes in steps of 3 comparing [i, i+3) with
// [i+3, i+6). Diversity is the number of distinct byte values over the
// trimmed length. The three checks are independent.
func DetectFreeze(text string) FreezeFlags {
	var ff FreezeFlags
	s := strings.TrimSpace(text)
	if s == "" {
		ff.Stall = true
		return ff
	}

	var total, repeats int
	for i := 0; i+6 <= len(s); i += 3 {
		total++
		if s[i:i+3] == s[i+3:i+6] {
			repeats++
		}
	}
	if total > 0 && float32(repeats)/float32(total) > repetitionThreshold {
		ff.Rep3p = true
	}

	var seen [256]bool
	distinct := 0
	for i := 0; i < len(s); i++ {
		if !seen[s[i]] {
			seen[s[i]] = true
			distinct++
		}
	}
	if float32(distinct)/float32(len(s)) < diversityThreshold {
		ff.Stall = true
	}

	if containsLowerASCII(s, "as an ai") || containsLowerASCII(s, "as a language model") {
		ff.AITell = true
	}
	return ff
}

// containsLowerASCII reports whether s, ASCII-lowercased, contains needle.
// needle must already be lowercase.
func containsLowerASCII(s, needle string) bool {
	n := len(needle)
	for i := 0; i+n <= len(s); i++ {
		j := 0
		for j < n && lowerASCII(s[i+j]) == needle[j] {
			j++
		}
		if j == n {
			return true
		}
	}
	return false
}

func lowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
