// Package detector holds the per-platform recognition and blocking logic. A
// detector owns a fixed rule table for its platform, decides hostname
// applicability, and executes scan passes over document subtrees.
package detector

import (
	"net/url"
	"strings"
	"sync"

	"shortsguard/internal/dom"
	"shortsguard/internal/rules"
	"shortsguard/internal/settings"
)

// Detector is the capability set every platform implementation provides.
type Detector interface {
	// Platform is the constant identity of this detector.
	Platform() settings.Platform
	// IsSupported reports whether hostname equals or is a subdomain of one
	// of the platform's known host suffixes.
	IsSupported(hostname string) bool
	// SetSettings replaces the cached snapshot. Last write wins, no merge.
	SetSettings(s *settings.Settings)
	// IsEnabled reports whether the cached snapshot enables this platform.
	IsEnabled() bool
	// Scan applies the platform rule table to root's subtree (root
	// included) and returns what happened. Scanning while disabled, or on
	// an exempt page, is a no-op.
	Scan(root *dom.Element, pageURL string) Result
}

// ChannelResolver is implemented by detectors that can derive a creator
// channel from a page URL, for channel-type whitelist matching.
type ChannelResolver interface {
	ChannelFromURL(pageURL string) string
}

// Applied records one rule application for statistics.
type Applied struct {
	Rule   string
	Action rules.Action
}

// Result is the ephemeral outcome of one scan pass.
type Result struct {
	Blocked int
	Applied []Applied
}

// base carries the behavior shared by every platform: host suffix matching,
// snapshot caching and the scan loop. Platform tables only differ in data.
type base struct {
	platform settings.Platform
	hosts    []string
	rules    []rules.Rule

	// exemptPage suppresses scanning on pages where short-form filtering
	// would remove unrelated content (e.g. search results). Evaluated from
	// the navigation URL at scan time, never cached.
	exemptPage func(u *url.URL) bool

	mu   sync.RWMutex
	snap *settings.Settings
}

func (b *base) Platform() settings.Platform { return b.platform }

func (b *base) IsSupported(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	for _, h := range b.hosts {
		if hostname == h || strings.HasSuffix(hostname, "."+h) {
			return true
		}
	}
	return false
}

func (b *base) SetSettings(s *settings.Settings) {
	b.mu.Lock()
	b.snap = s
	b.mu.Unlock()
}

func (b *base) IsEnabled() bool {
	b.mu.RLock()
	s := b.snap
	b.mu.RUnlock()
	if s == nil || !s.Enabled {
		return false
	}
	return s.Platforms[b.platform]
}

func (b *base) Scan(root *dom.Element, pageURL string) Result {
	var res Result
	if root == nil || !b.IsEnabled() {
		return res
	}
	if b.exemptPage != nil {
		if u, err := url.Parse(pageURL); err == nil && b.exemptPage(u) {
			return res
		}
	}
	root.Walk(func(el *dom.Element) bool {
		// Marker check comes before predicate evaluation: a processed
		// node is never re-evaluated, even if its attributes changed.
		if el.Marked() {
			return true
		}
		for _, r := range b.rules {
			if r.Match(el) {
				r.Apply(el)
				res.Applied = append(res.Applied, Applied{Rule: r.Name, Action: r.Action})
				if r.Blocks() {
					res.Blocked++
				}
				break
			}
		}
		return true
	})
	return res
}
