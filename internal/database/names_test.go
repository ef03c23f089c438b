package database

import "testing"

func TestFoldName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice", "alice"},
		{"ALICE", "alice"},
		{"  alice  ", "alice"},
		{"Jiří", "jiří"},
		{"Straße", "strasse"},
		{"José", "josé"},
		{"Jose\u0301", "josé"}, // decomposed accent
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := FoldName(tt.input)
			if result != tt.expected {
				t.Errorf("FoldName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestEqualFold(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Alice", "alice", true},
		{"Alice", "Alicia", false},
		{"Jiří", "Jiri", false},
		{"STRASSE", "straße", true},
	}

	for _, tc := range tests {
		t.Run(tc.a+"/"+tc.b, func(t *testing.T) {
			if got := EqualFold(tc.a, tc.b); got != tc.want {
				t.Errorf("EqualFold(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
