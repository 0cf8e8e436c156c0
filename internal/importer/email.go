package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// EmailValidator validates a raw address and returns its canonical form.
type EmailValidator interface {
	Canonicalize(ctx context.Context, raw string) (string, error)
}

// DomainChecker reports whether a domain can receive mail.
type DomainChecker interface {
	CheckDomain(ctx context.Context, domain string) error
}

var errMalformedEmail = errors.New("malformed address")

type emailValidator struct {
	validate *validator.Validate
	domains  DomainChecker
}

// NewEmailValidator returns the canonicalising validator. When domains is nil
// only the syntax is checked.
func NewEmailValidator(domains DomainChecker) EmailValidator {
	return &emailValidator{
		validate: validator.New(),
		domains:  domains,
	}
}

// Canonicalize trims and NFC-normalises raw, converts the domain to its IDNA
// ASCII form and lower-cases the whole address.
func (v *emailValidator) Canonicalize(ctx context.Context, raw string) (string, error) {
	s := norm.NFC.String(strings.TrimSpace(raw))
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", errMalformedEmail
	}
	local, domain := s[:at], s[at+1:]

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("domain %q: %w", domain, err)
	}
	addr := strings.ToLower(local + "@" + asciiDomain)
	if err := v.validate.Var(addr, "required,email"); err != nil {
		return "", errMalformedEmail
	}

	if v.domains != nil {
		if err := v.domains.CheckDomain(ctx, strings.ToLower(asciiDomain)); err != nil {
			return "", fmt.Errorf("domain %q does not accept email: %w", asciiDomain, err)
		}
	}
	return addr, nil
}
