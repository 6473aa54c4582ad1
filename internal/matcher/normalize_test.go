package matcher

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercase", "ACME CORP", "acme corp"},
		{"Diacritics stripped", "Société Générale", "societe generale"},
		{"Punctuation removed", "FAC-2024/001", "fac2024001"},
		{"Whitespace collapsed", "  ACME   Corp  ", "acme corp"},
		{"Mixed", "  Café  René & Fils, S.A.  ", "cafe rene fils sa"},
		{"Digits kept", "REF 12345", "ref 12345"},
		{"Empty", "", ""},
		{"Only punctuation", "***---***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Société Générale",
		"  ACME   Corp  ",
		"FAC-2024/001",
		"",
		"già normalizzato",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestNormalize_AccentInsensitiveEquality(t *testing.T) {
	if Normalize("Société Générale") != Normalize("SOCIETE GENERALE") {
		t.Errorf("Expected accented and unaccented spellings to normalize equal: %q vs %q",
			Normalize("Société Générale"), Normalize("SOCIETE GENERALE"))
	}
}

func TestMutuallyContains(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"acme corp", "acme", true},
		{"acme", "acme corp", true},
		{"acme corp", "acme corp", true},
		{"acme", "globex", false},
		{"", "acme", true},
	}

	for _, tt := range tests {
		if got := mutuallyContains(tt.a, tt.b); got != tt.expected {
			t.Errorf("mutuallyContains(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func BenchmarkNormalize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Normalize("VIR Société Générale FAC-2024-001 règlement")
	}
}
