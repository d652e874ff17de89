// Package validation sanitizes and validates inbound coach requests.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// Kind classifies why a request was rejected.
type Kind string

const (
	KindInput    Kind = "input"
	KindSecurity Kind = "security"
)

// Error carries one message per offending field.
type Error struct {
	Kind   Kind
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s validation failed: %s", e.Kind, strings.Join(parts, "; "))
}

// Field length bounds, in characters after sanitization.
const (
	UsernameMin = 3
	UsernameMax = 50
	UserIDMax   = 100
	QueryMin    = 10
	QueryMax    = 1000

	maxSpecialRatio = 0.3
)

var (
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter)\s+`),
		regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
		regexp.MustCompile(`(--|#|/\*|\*/)`),
	}
	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)eval\s*\(`),
		regexp.MustCompile(`(?i)expression\s*\(`),
	}
	specialChar = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,!?:;]`)
)

// SanitizeString normalizes s to NFKC, drops control characters other than
// tab, newline and carriage return, and trims surrounding whitespace.
func SanitizeString(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Sanitize returns req with every field sanitized.
func Sanitize(req domain.CoachRequest) domain.CoachRequest {
	return domain.CoachRequest{
		Username: SanitizeString(req.Username),
		UserID:   SanitizeString(req.UserID),
		Query:    SanitizeString(req.Query),
	}
}

type field struct {
	name  string
	value string
}

func fields(req domain.CoachRequest) []field {
	return []field{
		{"username", req.Username},
		{"userId", req.UserID},
		{"query", req.Query},
	}
}

// Validate sanitizes req and checks it. It returns the sanitized request, or
// an *Error describing every rejected field. Input rules run first; security
// rules only run on input that passed them.
func Validate(req domain.CoachRequest) (domain.CoachRequest, error) {
	clean := Sanitize(req)

	if errs := checkInput(clean); len(errs) > 0 {
		return clean, &Error{Kind: KindInput, Fields: errs}
	}
	if errs := checkSecurity(clean); len(errs) > 0 {
		return clean, &Error{Kind: KindSecurity, Fields: errs}
	}
	return clean, nil
}

func checkInput(req domain.CoachRequest) map[string]string {
	errs := map[string]string{}
	for _, f := range fields(req) {
		if f.value == "" {
			errs[f.name] = f.name + " is required and cannot be empty"
		}
	}

	if n := utf8.RuneCountInString(req.Username); n > UsernameMax {
		errs["username"] = fmt.Sprintf("Username cannot exceed %d characters", UsernameMax)
	} else if n > 0 && n < UsernameMin {
		errs["username"] = fmt.Sprintf("Username must be at least %d characters", UsernameMin)
	}

	if utf8.RuneCountInString(req.UserID) > UserIDMax {
		errs["userId"] = fmt.Sprintf("User ID cannot exceed %d characters", UserIDMax)
	}

	if n := utf8.RuneCountInString(req.Query); n > QueryMax {
		errs["query"] = fmt.Sprintf("Query cannot exceed %d characters", QueryMax)
	} else if n > 0 && n < QueryMin {
		errs["query"] = fmt.Sprintf("Query must be at least %d characters", QueryMin)
	}
	return errs
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// checkSecurity applies the injection, script and special-character rules.
// A later rule's message replaces an earlier one for the same field.
func checkSecurity(req domain.CoachRequest) map[string]string {
	errs := map[string]string{}
	for _, f := range fields(req) {
		if matchesAny(sqlPatterns, f.value) {
			errs[f.name] = "Invalid characters detected in " + f.name
		}
		if matchesAny(scriptPatterns, f.value) {
			errs[f.name] = "Script content not allowed in " + f.name
		}
		special := len(specialChar.FindAllStringIndex(f.value, -1))
		if float64(special) > float64(utf8.RuneCountInString(f.value))*maxSpecialRatio {
			errs[f.name] = "Too many special characters in " + f.name
		}
	}
	return errs
}
