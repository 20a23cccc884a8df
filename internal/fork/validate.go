package fork

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a fork name against the allowed identifier alphabet.
// Names are plain identifiers: no path separators, no whitespace, nothing
// outside [A-Za-z0-9_-].
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameEmpty
	}
	if !namePattern.MatchString(trimmed) {
		return fmt.Errorf("%w: %q", ErrNameInvalid, name)
	}
	return nil
}

// NormalizeName trims whitespace and validates the result.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidateName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// URLValidator validates clone URLs against a fixed git host.
type URLValidator struct {
	pattern *regexp.Regexp
}

// NewURLValidator builds a validator accepting only
// https://<host>/<owner>/<repo>.git with owner and repo restricted to the
// fork-name alphabet.
func NewURLValidator(host string) *URLValidator {
	quoted := regexp.QuoteMeta(host)
	return &URLValidator{
		pattern: regexp.MustCompile(`^https://` + quoted + `/[A-Za-z0-9_-]+/[A-Za-z0-9_-]+\.git$`),
	}
}

// Validate reports whether the URL is acceptable for cloning.
func (v *URLValidator) Validate(rawURL string) error {
	if !v.pattern.MatchString(strings.TrimSpace(rawURL)) {
		return fmt.Errorf("%w: %q", ErrURLInvalid, rawURL)
	}
	return nil
}
