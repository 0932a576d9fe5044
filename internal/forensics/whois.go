package forensics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

var errNoCreatedDate = errors.New("no creation date in whois record")

// RegistrationLookup resolves when a domain was registered.
type RegistrationLookup interface {
	CreatedAt(ctx context.Context, domain string) (time.Time, error)
}

// WhoisLookup queries public WHOIS servers.
type WhoisLookup struct {
	client *whois.Client
}

// NewWhoisLookup creates a lookup whose network calls time out after timeout.
func NewWhoisLookup(timeout time.Duration) *WhoisLookup {
	return &WhoisLookup{client: whois.NewClient().SetTimeout(timeout)}
}

type whoisResult struct {
	raw string
	err error
}

// CreatedAt implements RegistrationLookup. The WHOIS client has no context
// support, so ctx bounds how long the caller waits.
func (l *WhoisLookup) CreatedAt(ctx context.Context, d string) (time.Time, error) {
	done := make(chan whoisResult, 1)
	go func() {
		raw, err := l.client.Whois(d)
		done <- whoisResult{raw: raw, err: err}
	}()

	var res whoisResult
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("whois %s: %w", d, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return time.Time{}, fmt.Errorf("whois %s: %w", d, res.err)
	}

	info, err := whoisparser.Parse(res.raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse whois %s: %w", d, err)
	}
	if info.Domain == nil || info.Domain.CreatedDate == "" {
		return time.Time{}, errNoCreatedDate
	}
	return parseCreatedDate(info.Domain.CreatedDate)
}

var createdDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"2006/01/02",
}

func parseCreatedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createdDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation date %q", s)
}

// maxAgeEntries bounds the cache; the entry closest to expiry is evicted first.
const maxAgeEntries = 10000

// ageCache remembers creation dates so repeated links do not re-query WHOIS.
// Expired entries are swept on write at most once per TTL.
type ageCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	max       int
	nextSweep time.Time
	entries   map[string]ageEntry
}

type ageEntry struct {
	created time.Time
	expires time.Time
}

func newAgeCache(ttl time.Duration) *ageCache {
	return &ageCache{ttl: ttl, max: maxAgeEntries, entries: make(map[string]ageEntry)}
}

func (c *ageCache) get(d string, now time.Time) (time.Time, bool) {
	if c.ttl <= 0 {
		return time.Time{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[d]
	if !ok {
		return time.Time{}, false
	}
	if now.After(e.expires) {
		delete(c.entries, d)
		return time.Time{}, false
	}
	return e.created, true
}

func (c *ageCache) put(d string, created, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.nextSweep) {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		c.nextSweep = now.Add(c.ttl)
	}
	if _, ok := c.entries[d]; !ok && len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.entries[d] = ageEntry{created: created, expires: now.Add(c.ttl)}
}

func (c *ageCache) evictOldest() {
	var oldest string
	var at time.Time
	for k, e := range c.entries {
		if oldest == "" || e.expires.Before(at) {
			oldest, at = k, e.expires
		}
	}
	delete(c.entries, oldest)
}

func (c *ageCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
