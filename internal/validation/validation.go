package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrQueryTooShort is returned when the trimmed query has fewer runes than the minimum.
// An empty query is always too short.
var ErrQueryTooShort = errors.New("query too short")

// ErrQueryTooLong is returned when the trimmed query exceeds the maximum.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the query contains control characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ValidateQuery trims a city search and enforces length bounds counted in runes.
// maxLen <= 0 disables the upper bound. Returns the trimmed query.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	if n == 0 || n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range s {
		if unicode.IsControl(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}
