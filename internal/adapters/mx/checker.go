// Package mx checks that email domains can receive mail.
package mx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoSuchDomain is returned when the domain has neither MX nor address records.
	ErrNoSuchDomain = errors.New("domain does not exist")
	// ErrNullMX is returned for domains publishing a null MX record (RFC 7505).
	ErrNullMX = errors.New("domain does not accept email")
)

// Resolver is the subset of *net.Resolver the checker uses.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Config tunes the checker. Zero values take defaults.
type Config struct {
	LookupTimeout time.Duration
	CacheSize     int
	CacheTTL      time.Duration
}

const (
	defaultLookupTimeout = 3 * time.Second
	defaultCacheSize     = 4096
	defaultCacheTTL      = 10 * time.Minute
)

// Checker resolves MX records with an address-record fallback. Temporary DNS
// failures are reported as deliverable so a flaky resolver does not reject
// whole attendee lists.
type Checker struct {
	resolver Resolver
	timeout  time.Duration
	cache    *expirable.LRU[string, error]
	group    singleflight.Group
	logger   *slog.Logger
}

// NewChecker returns a Checker using resolver, or net.DefaultResolver when nil.
func NewChecker(resolver Resolver, cfg Config, logger *slog.Logger) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Checker{
		resolver: resolver,
		timeout:  cfg.LookupTimeout,
		cache:    expirable.NewLRU[string, error](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger,
	}
}

// CheckDomain returns nil when domain can receive mail.
func (c *Checker) CheckDomain(ctx context.Context, domain string) error {
	if err, ok := c.cache.Get(domain); ok {
		return err
	}
	v, _, _ := c.group.Do(domain, func() (any, error) {
		cacheable, err := c.lookup(ctx, domain)
		if cacheable {
			c.cache.Add(domain, err)
		}
		return err, nil
	})
	if v == nil {
		return nil
	}
	return v.(error)
}

// lookup reports whether the verdict for domain may be cached, and the verdict.
func (c *Checker) lookup(ctx context.Context, domain string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.resolver.LookupMX(ctx, domain)
	if err == nil {
		if len(records) == 1 && (records[0].Host == "." || records[0].Host == "") {
			return true, fmt.Errorf("%s: %w", domain, ErrNullMX)
		}
		if len(records) > 0 {
			return true, nil
		}
	}
	if err != nil && !isNotFound(err) {
		return c.failOpen(ctx, domain, err)
	}

	// No MX: an address record makes the domain its own implicit mail exchanger.
	addrs, err := c.resolver.LookupHost(ctx, domain)
	switch {
	case err == nil && len(addrs) > 0:
		return true, nil
	case err == nil || isNotFound(err):
		return true, fmt.Errorf("%s: %w", domain, ErrNoSuchDomain)
	default:
		return c.failOpen(ctx, domain, err)
	}
}

func (c *Checker) failOpen(ctx context.Context, domain string, err error) (bool, error) {
	c.logger.WarnContext(ctx, "mx lookup failed, accepting domain", "domain", domain, "err", err)
	return false, nil
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
