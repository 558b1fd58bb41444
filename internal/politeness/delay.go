package politeness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/websearch/internal/metrics"
)

// DelayRange bounds a uniformly drawn politeness delay.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Validate rejects negative or inverted ranges.
func (r DelayRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("delay must not be negative: %s-%s", r.Min, r.Max)
	}
	if r.Max < r.Min {
		return fmt.Errorf("max delay %s is below min delay %s", r.Max, r.Min)
	}
	return nil
}

// Sleeper blocks for a duration unless the context ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// DelayPolicy draws the pause taken before each request.
type DelayPolicy struct {
	def     DelayRange
	sleeper Sleeper

	// override may replace the range for a host.
	override func(host string) (DelayRange, bool)
	// floor returns a minimum delay for a URL, e.g. the robots Crawl-delay.
	floor func(rawURL string) time.Duration
	// draw returns a value in [0, n).
	draw func(n int64) int64
}

// DelayOption customizes a DelayPolicy.
type DelayOption func(*DelayPolicy)

// WithDomainOverride installs a per-host range hook.
func WithDomainOverride(fn func(host string) (DelayRange, bool)) DelayOption {
	return func(p *DelayPolicy) { p.override = fn }
}

// WithDomainDelays installs static per-host ranges.
func WithDomainDelays(ranges map[string]DelayRange) DelayOption {
	table := make(map[string]DelayRange, len(ranges))
	for host, r := range ranges {
		table[strings.ToLower(host)] = r
	}
	return WithDomainOverride(func(host string) (DelayRange, bool) {
		r, ok := table[strings.ToLower(host)]
		return r, ok
	})
}

// WithFloor sets a per-URL minimum delay.
func WithFloor(fn func(rawURL string) time.Duration) DelayOption {
	return func(p *DelayPolicy) { p.floor = fn }
}

// WithDraw replaces the random source.
func WithDraw(fn func(n int64) int64) DelayOption {
	return func(p *DelayPolicy) { p.draw = fn }
}

// NewDelayPolicy builds a policy drawing from def unless an override applies.
func NewDelayPolicy(def DelayRange, sleeper Sleeper, opts ...DelayOption) *DelayPolicy {
	p := &DelayPolicy{
		def:     def,
		sleeper: sleeper,
		draw:    rand.Int64N,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithRange returns a copy of p whose default range is r. Hooks and sleeper are shared.
func (p *DelayPolicy) WithRange(r DelayRange) *DelayPolicy {
	cp := *p
	cp.def = r
	return &cp
}

// Range reports the range that applies to rawURL.
func (p *DelayPolicy) Range(rawURL string) DelayRange {
	if p.override != nil {
		if u, err := url.Parse(rawURL); err == nil {
			if r, ok := p.override(u.Hostname()); ok {
				return r
			}
		}
	}
	return p.def
}

// Next draws the delay for rawURL.
func (p *DelayPolicy) Next(rawURL string) time.Duration {
	r := p.Range(rawURL)
	d := r.Min
	if span := int64(r.Max - r.Min); span > 0 {
		d += time.Duration(p.draw(span + 1))
	}
	if p.floor != nil {
		if f := p.floor(rawURL); f > d {
			d = f
		}
	}
	return d
}

// Wait sleeps for Next(rawURL).
func (p *DelayPolicy) Wait(ctx context.Context, rawURL string) error {
	d := p.Next(rawURL)
	if d <= 0 {
		return nil
	}
	metrics.ObservePolitenessDelay(d)
	if err := p.sleeper.Sleep(ctx, d); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	return nil
}

// ParseDelayRange parses "min-max" or a single value. Values are Go durations
// ("500ms") or bare seconds ("1.5").
func ParseDelayRange(s string) (DelayRange, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	minDelay, err := parseDelay(lo)
	if err != nil {
		return DelayRange{}, err
	}
	maxDelay := minDelay
	if found {
		if maxDelay, err = parseDelay(hi); err != nil {
			return DelayRange{}, err
		}
	}
	r := DelayRange{Min: minDelay, Max: maxDelay}
	if err := r.Validate(); err != nil {
		return DelayRange{}, err
	}
	return r, nil
}

// ParseDomainDelays parses "host=min-max" entries into a per-host table.
func ParseDomainDelays(entries []string) (map[string]DelayRange, error) {
	out := make(map[string]DelayRange, len(entries))
	for _, entry := range entries {
		host, rng, ok := strings.Cut(entry, "=")
		host = strings.ToLower(strings.TrimSpace(host))
		if !ok || host == "" {
			return nil, fmt.Errorf("domain delay %q: want host=range", entry)
		}
		r, err := ParseDelayRange(rng)
		if err != nil {
			return nil, fmt.Errorf("delay for %q: %w", host, err)
		}
		out[host] = r
	}
	return out, nil
}

func parseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty delay")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse delay %q: %w", s, err)
	}
	return d, nil
}
