package domain

import (
	"strings"
	"testing"
)

func TestGenerateKeyShape(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if err := ValidateKeyFormat(key); err != nil {
		t.Fatalf("Generated key %s failed its own format check: %v", key, err)
	}

	parts := strings.Split(key, "-")
	if len(parts) != 5 || parts[0] != KeyPrefix {
		t.Fatalf("Unexpected key shape: %s", key)
	}
	for _, seg := range parts[1:] {
		for _, c := range seg {
			if strings.ContainsRune("0O1I", c) {
				t.Errorf("Key %s contains ambiguous character %q", key, c)
			}
		}
	}
}

func TestGenerateKeyVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey failed: %v", err)
		}
		if seen[key] {
			t.Fatalf("Generator produced a repeat within 100 keys: %s", key)
		}
		seen[key] = true
	}
}

func TestCanonicalKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"NTRS-AB12-CD34-EF56-GH78", "NTRS-AB12-CD34-EF56-GH78"},
		{"ntrs-ab12-cd34-ef56-gh78", "NTRS-AB12-CD34-EF56-GH78"},
		{"  NTRS-AB12-CD34-EF56-GH78\n", "NTRS-AB12-CD34-EF56-GH78"},
		{"\tNtRs-Ab12-cD34-eF56-Gh78 ", "NTRS-AB12-CD34-EF56-GH78"},
	}
	for _, tc := range cases {
		if got := CanonicalKey(tc.in); got != tc.want {
			t.Errorf("CanonicalKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"NTRS-AB12-CD34-EF56-GH78", "NTRS-AB12-****-****-GH78"},
		{"NTRS-2222-3333-4444-5555", "NTRS-2222-****-****-5555"},
		{"some-longer-opaque-token-here", "some-longer-****-****-here"},
		{"longopaquetoken", "longopaq****"},
		{"short", "short****"},
		{"", "****"},
	}
	for _, tc := range cases {
		if got := MaskKey(tc.in); got != tc.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskKeyHidesMiddleSegments(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	masked := MaskKey(key)
	parts := strings.Split(key, "-")
	if strings.Contains(masked, parts[2]) || strings.Contains(masked, parts[3]) {
		t.Errorf("Mask leaks middle segments: %s -> %s", key, masked)
	}
}

func TestValidateKeyFormat(t *testing.T) {
	valid := []string{
		"NTRS-AB12-CD34-EF56-GH78",
		"NTRS-2345-6789-JKLM-NPQR",
	}
	for _, key := range valid {
		if err := ValidateKeyFormat(key); err != nil {
			t.Errorf("ValidateKeyFormat(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		"NTRS-AB12-CD34-EF56",           // too few segments
		"NTRS-AB12-CD34-EF56-GH78-XX22", // too many segments
		"ACME-AB12-CD34-EF56-GH78",      // wrong prefix
		"NTRS-AB1-CD34-EF56-GH78",       // short segment
		"NTRS-AB12-CD34-EF56-GH7O",      // ambiguous letter O
		"NTRS-AB12-CD34-EF56-GH70",      // digit 0 not in alphabet
		"NTRS-ab12-cd34-ef56-gh78",      // lowercase is not canonical
	}
	for _, key := range invalid {
		if err := ValidateKeyFormat(key); err == nil {
			t.Errorf("ValidateKeyFormat(%q) = nil, want error", key)
		}
	}
}
