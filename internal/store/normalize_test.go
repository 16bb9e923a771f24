package store

import "testing"

func TestNormalizePhotographer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Jan Novak", "jan novak"},
		{"diacritics", "Jiří Dvořák", "jiri dvorak"},
		{"dashes", "anna-marie", "anna marie"},
		{"mixed case with spaces", "  Petra KLOBOUKOVA ", "petra kloboukova"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePhotographer(tc.in); got != tc.want {
				t.Errorf("NormalizePhotographer(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRemoveDiacritics(t *testing.T) {
	if got := RemoveDiacritics("žluťoučký kůň"); got != "zlutoucky kun" {
		t.Errorf("RemoveDiacritics = %q", got)
	}
}
