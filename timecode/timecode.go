// Package timecode converts human-entered time strings to and from integer seconds.
//
// Accepted input shapes are raw seconds ("90"), minutes:seconds ("17:49") and
// hours:minutes:seconds ("1:23:45"). All values are bounded to a single day.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxSeconds is the upper bound for any parsed or formatted timestamp (24 hours).
const MaxSeconds = 86400

var (
	// ErrInvalidFormat indicates input that does not match any accepted time shape.
	ErrInvalidFormat = errors.New("invalid time format")

	// ErrOutOfRange indicates a syntactically valid time outside [0, MaxSeconds].
	ErrOutOfRange = errors.New("time out of range")
)

// Parse converts a human time string into integer seconds.
//
// Characters other than digits and colons are stripped before matching, so
// pasted values like " 17:49 " or "17m:49s" still resolve. Seconds components
// must be below 60; so must the minutes component of an h:mm:ss value.
func Parse(input string) (int, error) {
	cleaned := sanitize(input)
	if cleaned == "" {
		return 0, fmt.Errorf("parse %q: %w", input, ErrInvalidFormat)
	}

	parts := strings.Split(cleaned, ":")

	var total int
	switch len(parts) {
	case 1:
		n, err := component(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", input, ErrInvalidFormat)
		}
		total = n

	case 2:
		m, errM := component(parts[0])
		s, errS := component(parts[1])
		if errM != nil || errS != nil || s >= 60 {
			return 0, fmt.Errorf("parse %q: %w", input, ErrInvalidFormat)
		}
		total = m*60 + s

	case 3:
		h, errH := component(parts[0])
		m, errM := component(parts[1])
		s, errS := component(parts[2])
		if errH != nil || errM != nil || errS != nil || m >= 60 || s >= 60 {
			return 0, fmt.Errorf("parse %q: %w", input, ErrInvalidFormat)
		}
		total = h*3600 + m*60 + s

	default:
		return 0, fmt.Errorf("parse %q: %w", input, ErrInvalidFormat)
	}

	if total < 0 || total > MaxSeconds {
		return 0, fmt.Errorf("parse %q: %w", input, ErrOutOfRange)
	}

	return total, nil
}

// Format renders a second count as "m:ss" with unpadded minutes.
// Negative and NaN values are clamped to zero; fractional seconds are floored.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// sanitize removes every rune that is neither a digit nor a colon.
func sanitize(input string) string {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == ':' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// component parses a single non-empty digit run.
func component(s string) (int, error) {
	if s == "" {
		return 0, ErrInvalidFormat
	}
	return strconv.Atoi(s)
}
