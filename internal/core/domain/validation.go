package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidateDomainName checks that the domain a client claims to run on is a
// plausible hostname. Bindings and mismatch comparisons use the string exactly
// as validated; no trailing-dot form is accepted.
func ValidateDomainName(name string) error {
	if name == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if len(name) > 253 {
		return fmt.Errorf("domain exceeds 253 characters")
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("domain must not end with a dot")
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("domain contains empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if !validLabelRegex.MatchString(label) {
			return fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return nil
}

// ValidateKeyFormat checks the canonical shape of a license key:
// PREFIX-XXXX-XXXX-XXXX-XXXX over the unambiguous key alphabet. Lookup still
// decides existence; this only rejects garbage before it reaches the store.
func ValidateKeyFormat(key string) error {
	parts := strings.Split(key, "-")
	if len(parts) != keySegments+1 {
		return fmt.Errorf("key must have %d segments separated by dashes", keySegments+1)
	}
	if parts[0] != KeyPrefix {
		return fmt.Errorf("key must start with %s", KeyPrefix)
	}
	for _, seg := range parts[1:] {
		if len(seg) != segmentLength {
			return fmt.Errorf("key segment '%s' must be %d characters", seg, segmentLength)
		}
		for _, c := range seg {
			if !strings.ContainsRune(keyAlphabet, c) {
				return fmt.Errorf("key segment '%s' contains invalid character %q", seg, c)
			}
		}
	}
	return nil
}
