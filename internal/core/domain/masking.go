package domain

import (
	"crypto/sha256"
	"fmt"
)

// MaskType represents a parameter masking strategy.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid returns true if the MaskType is a recognised masking strategy
// (including the zero value "", which means "no mask").
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms a value according to the mask type.
// Masked values may change type (e.g. int -> string for hash/partial).
// MaskNull returns nil, which renders as NULL.
func ApplyMask(value any, maskType MaskType) any {
	if value == nil {
		return nil
	}

	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		s := fmt.Sprintf("%v", value)
		h := sha256.Sum256([]byte(s))
		return fmt.Sprintf("%x", h) // full 256-bit, 64 hex chars
	case MaskPartial:
		return maskPartial(value)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// maskPartial reveals only the last 4 characters, replacing the rest with
// asterisks. Works correctly with multi-byte (unicode) strings.
func maskPartial(value any) string {
	s := fmt.Sprintf("%v", value)
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	masked := make([]rune, len(runes))
	for i := range masked {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}

// MaskValues returns a copy of values with the mask applied at the given
// 1-based positions. No positions means every value is masked.
// The input slice is never modified: it is what the driver receives.
func MaskValues(values []any, positions []int, maskType MaskType) []any {
	out := make([]any, len(values))
	copy(out, values)
	if len(positions) == 0 {
		for i := range out {
			out[i] = ApplyMask(out[i], maskType)
		}
		return out
	}
	for _, p := range positions {
		if p >= 1 && p <= len(out) {
			out[p-1] = ApplyMask(out[p-1], maskType)
		}
	}
	return out
}
