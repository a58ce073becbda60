// Package afm validates and formats Greek tax identifiers (AFM). Validation
// is pure computation: normalization, length and trivial-sequence checks, and
// the mod-11/mod-10 checksum over the first eight digits.
package afm

import (
	"strings"
)

// Reason classifies why validation rejected an input.
type Reason string

const (
	ReasonOK       Reason = ""
	ReasonLength   Reason = "INVALID_LENGTH"
	ReasonTrivial  Reason = "INVALID_TRIVIAL"
	ReasonChecksum Reason = "INVALID_CHECKSUM"
)

// Normalize strips every non-digit character from raw.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate normalizes raw and checks it is a structurally valid AFM.
// It returns the cleaned identifier, whether it is valid, and the rejection
// reason when it is not. Checks run in order: length, trivial sequence,
// checksum.
func Validate(raw string) (string, bool, Reason) {
	cleaned := Normalize(raw)

	if len(cleaned) != 9 {
		return cleaned, false, ReasonLength
	}

	if isTrivial(cleaned) {
		return cleaned, false, ReasonTrivial
	}

	if !checksumValid(cleaned) {
		return cleaned, false, ReasonChecksum
	}

	return cleaned, true, ReasonOK
}

// Format renders a validated identifier as "DDD DDD DDD" for display.
// Inputs that are not 9 digits are returned unchanged.
func Format(id string) string {
	if len(id) != 9 {
		return id
	}
	return id[0:3] + " " + id[3:6] + " " + id[6:9]
}

// isTrivial reports whether every digit is identical. This also covers the
// all-zeros case, which passes the checksum but is never a real AFM.
func isTrivial(id string) bool {
	for i := 1; i < len(id); i++ {
		if id[i] != id[0] {
			return false
		}
	}
	return true
}

// checksumValid verifies digit 9 against the weighted sum of digits 1-8:
// (Σ digit[i] * 2^(8-i)) mod 11 mod 10.
func checksumValid(id string) bool {
	sum := 0
	weight := 256 // 2^8
	for i := 0; i < 8; i++ {
		sum += int(id[i]-'0') * weight
		weight /= 2
	}
	return sum%11%10 == int(id[8]-'0')
}
