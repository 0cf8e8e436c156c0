package importer

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader lower-cases h, collapses every run of non-alphanumeric
// characters into one space and trims the result ("E-Mail Address" -> "e mail address").
func NormalizeHeader(h string) string {
	return strings.TrimSpace(nonAlphanumeric.ReplaceAllString(strings.ToLower(h), " "))
}

// HeaderMatcher is one rule for recognising a column from its normalised header.
type HeaderMatcher struct {
	Name  string
	Match func(normalized string) bool
}

// ExactHeader matches headers equal to one of names.
func ExactHeader(names ...string) HeaderMatcher {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return HeaderMatcher{
		Name: "exact",
		Match: func(normalized string) bool {
			_, ok := set[normalized]
			return ok
		},
	}
}

// LastToken matches headers whose last word is token ("work email").
func LastToken(token string) HeaderMatcher {
	return HeaderMatcher{
		Name: "last-token:" + token,
		Match: func(normalized string) bool {
			fields := strings.Fields(normalized)
			return len(fields) > 0 && fields[len(fields)-1] == token
		},
	}
}

// ContainsHeader matches headers containing sub anywhere ("emailaddr").
func ContainsHeader(sub string) HeaderMatcher {
	return HeaderMatcher{
		Name: "contains:" + sub,
		Match: func(normalized string) bool {
			return strings.Contains(normalized, sub)
		},
	}
}

// EmailHeaderMatchers are tried in order. The first matcher that accepts any
// header wins; among headers it accepts, the leftmost one is used.
// The last tier accepts any header containing "email", such as "Email Opt-In".
var EmailHeaderMatchers = []HeaderMatcher{
	ExactHeader("email", "emails", "email address", "e mail", "e mail address", "e mail addresses"),
	LastToken("email"),
	ContainsHeader("email"),
}

// NameHeaderMatchers resolve the optional display-name column.
var NameHeaderMatchers = []HeaderMatcher{
	ExactHeader("name", "full name", "username", "attendee name"),
	ContainsHeader("name"),
}

// ColumnMapping names the table columns holding the email and the display name.
// Name is empty when the file has no name column.
type ColumnMapping struct {
	Email string
	Name  string
}

// ResolveColumns picks the email and name columns from headers.
// A missing email column is fatal; a missing name column is not.
// Columns whose header was blank in the file are never picked.
func ResolveColumns(headers []string) (ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	email, ok := findColumn(headers, normalized, EmailHeaderMatchers, "")
	if !ok {
		return ColumnMapping{}, newError(KindSchema, ErrMissingEmailColumn, nil)
	}
	name, _ := findColumn(headers, normalized, NameHeaderMatchers, email)
	return ColumnMapping{Email: email, Name: name}, nil
}

func findColumn(headers, normalized []string, matchers []HeaderMatcher, exclude string) (string, bool) {
	for _, m := range matchers {
		for i, n := range normalized {
			if headers[i] == exclude || n == "" || strings.HasPrefix(headers[i], unnamedHeaderPrefix) {
				continue
			}
			if m.Match(n) {
				return headers[i], true
			}
		}
	}
	return "", false
}
