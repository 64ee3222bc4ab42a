package arbiter

import (
	"strings"
	"testing"
)

func TestDetectFreeze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want FreezeFlags
	}{
		{
			name: "empty is a stall",
			text: "",
			want: FreezeFlags{Stall: true},
		},
		{
			name: "whitespace only is a stall",
			text: " \t\n  ",
			want: FreezeFlags{Stall: true},
		},
		{
			name: "short text never repeats",
			text: "abcab",
			want: FreezeFlags{},
		},
		{
			name: "trimmed short text",
			text: "   hello  ",
			want: FreezeFlags{},
		},
		{
			name: "repeated trigram",
			text: "abcabcabcabc",
			want: FreezeFlags{Rep3p: true},
		},
		{
			name: "single byte run repeats and stalls",
			text: strings.Repeat("a", 20),
			want: FreezeFlags{Rep3p: true, Stall: true},
		},
		{
			name: "ai tell mixed case",
			text: "As an AI, I cannot help with that request.",
			want: FreezeFlags{AITell: true},
		},
		{
			name: "language model tell upper case",
			text: "AS A LANGUAGE MODEL I do not have opinions",
			want: FreezeFlags{AITell: true},
		},
		{
			name: "ordinary sentence",
			text: "The quick brown fox jumps over the lazy dog.",
			want: FreezeFlags{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFreeze(tt.text); got != tt.want {
				t.Errorf("DetectFreeze(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectFreeze_ShortTextNeverRepeats(t *testing.T) {
	for _, s := range []string{"a", "aa", "aaa", "aaaa", "aaaaa", "ababa"} {
		if DetectFreeze(s).Rep3p {
			t.Errorf("DetectFreeze(%q).Rep3p = true, want false", s)
		}
	}
}

func TestDetectFreeze_DiversityBoundary(t *testing.T) {
	// 3 distinct bytes over 25 is exactly 0.12: not below the threshold.
	atBoundary := strings.Repeat("abc", 8) + "a"
	if DetectFreeze(atBoundary).Stall {
		t.Errorf("DetectFreeze(%q).Stall = true, want false at the boundary", atBoundary)
	}

	// 2 distinct bytes over 25 is 0.08.
	below := strings.Repeat("ab", 12) + "a"
	if !DetectFreeze(below).Stall {
		t.Errorf("DetectFreeze(%q).Stall = false, want true", below)
	}
}

func TestDetectFreeze_RepetitionRatio(t *testing.T) {
	// Windows: [abc|abc] [abc|xyz] [xyz|def] -> 1 of 3 is above 0.30.
	if !DetectFreeze("abcabcxyzdef").Rep3p {
		t.Error("expected 1/3 repeated windows to set Rep3p")
	}
	// Windows: [abc|def] [def|ghi] [ghi|jkl] [jkl|jkl] -> 1 of 4 is below 0.30.
	if DetectFreeze("abcdefghijkljkl").Rep3p {
		t.Error("expected 1/4 repeated windows to leave Rep3p unset")
	}
}

func TestFreezeFlags_Or(t *testing.T) {
	a := FreezeFlags{Rep3p: true}
	b := FreezeFlags{AITell: true}

	got := a.Or(b)
	want := FreezeFlags{Rep3p: true, AITell: true}
	if got != want {
		t.Errorf("Or() = %+v, want %+v", got, want)
	}
	if !got.Any() {
		t.Error("Any() = false, want true")
	}
	if (FreezeFlags{}).Any() {
		t.Error("zero flags Any() = true, want false")
	}
}
