package keyword

import "testing"

func TestSuggest(t *testing.T) {
	known := []string{"porcupine", "grasshopper", "ok home", "himbeere"}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"close typo", "porcupin", "porcupine"},
		{"case insensitive", "Porcupine", "porcupine"},
		{"multi word", "ok hom", "ok home"},
		{"nothing close", "alexa", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suggest(tt.input, known); got != tt.want {
				t.Errorf("Suggest(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSuggest_NoCandidates(t *testing.T) {
	if got := Suggest("porcupine", nil); got != "" {
		t.Errorf("Suggest with no candidates = %q, want empty", got)
	}
}
