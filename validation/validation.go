// Package validation holds the pure format checks applied to customer and
// staff input before it ever reaches storage. None of these touch chain
// state; a well-formed hash may still point at nothing.
package validation

import (
	"math"
	"strconv"
	"strings"
)

// IsValidContractAddress reports whether s is exactly "0x" followed by 40
// hex characters, case-insensitive.
func IsValidContractAddress(s string) bool {
	return isHexWithPrefix(s, 40)
}

// IsValidTxHash reports whether s is exactly "0x" followed by 64 hex
// characters, case-insensitive.
func IsValidTxHash(s string) bool {
	return isHexWithPrefix(s, 64)
}

// IsValidAmount reports whether s parses as a finite number greater than
// zero. The string itself is stored verbatim, never the parsed value.
func IsValidAmount(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}
	return !math.IsInf(v, 0) && !math.IsNaN(v) && v > 0
}

func isHexWithPrefix(s string, digits int) bool {
	if len(s) != digits+2 {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for i := 2; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
