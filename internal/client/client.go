// Package client defines the customer record and the rules each field must satisfy.
package client

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Age bounds, inclusive.
const (
	MinAge = 0
	MaxAge = 100
)

// TaxIDLength is the number of digits in a normalized tax identifier (CPF).
const TaxIDLength = 11

var (
	ErrInvalidName   = errors.New("name must contain only letters and cannot be empty")
	ErrInvalidAge    = errors.New("enter a valid age")
	ErrAgeOutOfRange = fmt.Errorf("age must be between %d and %d", MinAge, MaxAge)
	ErrInvalidEmail  = errors.New("invalid e-mail")
	ErrInvalidTaxID  = fmt.Errorf("CPF must contain %d numeric digits", TaxIDLength)
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-z0-9.-]+\.[a-zA-Z]{2,}$`)

// TaxID is a normalized tax identifier: exactly TaxIDLength ASCII digits.
type TaxID string

func (id TaxID) String() string { return string(id) }

// Client is a customer record. The tax identifier is the registry key, not a field.
type Client struct {
	Name  string `json:"nome"`
	Age   int    `json:"idade"`
	Email string `json:"email"`
}

// Validate checks every field against the same rules the prompts enforce.
// Stored values are expected to already be normalized.
func (c Client) Validate() error {
	name, err := NormalizeName(c.Name)
	if err != nil {
		return err
	}
	if name != c.Name {
		return fmt.Errorf("%w: %q is not normalized", ErrInvalidName, c.Name)
	}
	if c.Age < MinAge || c.Age > MaxAge {
		return fmt.Errorf("%w: got %d", ErrAgeOutOfRange, c.Age)
	}
	if _, err := ValidateEmail(c.Email); err != nil {
		return err
	}
	return nil
}

// NormalizeName trims and upper-cases s. Ignoring spaces, the result must
// consist only of letters and hold at least two of them.
func NormalizeName(s string) (string, error) {
	name := upper(strings.TrimSpace(s))
	letters := strings.ReplaceAll(name, " ", "")
	if utf8.RuneCountInString(letters) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	for _, r := range letters {
		if !unicode.IsLetter(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
		}
	}
	return name, nil
}

// ParseAge parses a non-negative decimal age within [MinAge, MaxAge].
// Signs, spaces inside the number, and non-ASCII digits are rejected.
func ParseAge(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !isDigits(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAge, s)
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		// Only overflow reaches here; the digits check guarantees syntax.
		return 0, fmt.Errorf("%w: %q", ErrAgeOutOfRange, s)
	}
	if age < MinAge || age > MaxAge {
		return 0, fmt.Errorf("%w: got %d", ErrAgeOutOfRange, age)
	}
	return age, nil
}

// ValidateEmail trims s and checks it against the local@domain.tld pattern.
func ValidateEmail(s string) (string, error) {
	email := strings.TrimSpace(s)
	if !emailPattern.MatchString(email) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, s)
	}
	return email, nil
}

// ParseTaxID trims s, strips '.' and '-' separators, and requires exactly
// TaxIDLength ASCII digits.
func ParseTaxID(s string) (TaxID, error) {
	id := strings.NewReplacer(".", "", "-", "").Replace(strings.TrimSpace(s))
	if len(id) != TaxIDLength || !isDigits(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaxID, s)
	}
	return TaxID(id), nil
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
