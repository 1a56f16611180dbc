// Package rules implements the atomic predicate/action primitives the
// platform detectors are built from. A rule never errors on "no match"; an
// inapplicable predicate simply returns false.
package rules

import (
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"

	"shortsguard/internal/dom"
)

// Action is what a matched rule does to the node.
type Action string

const (
	// ActionHide sets display:none and the hidden marker, then marks the
	// node processed.
	ActionHide Action = "hide"
	// ActionRemove detaches the node and marks its parent as the
	// placeholder, so re-inserted siblings are still evaluated but the
	// removal point is not re-processed.
	ActionRemove Action = "remove"
	// ActionSkip marks the node processed without any visual change; used
	// for allow-rules that shield a subtree from later rules.
	ActionSkip Action = "skip"
)

// Rule pairs a predicate with an action. Rules are evaluated in declaration
// order per platform; the first match wins for a node.
type Rule struct {
	Name   string
	Match  func(*dom.Element) bool
	Action Action
}

// Apply executes the rule's action on el and sets the processed marker.
// Callers check the marker before calling Match; Apply assumes the node is
// unprocessed.
func (r Rule) Apply(el *dom.Element) {
	switch r.Action {
	case ActionHide:
		el.Hide()
		el.Mark()
	case ActionRemove:
		parent := el.Parent()
		el.Detach()
		el.Mark()
		if parent != nil {
			parent.Mark()
		}
	case ActionSkip:
		el.Mark()
	}
}

// Blocks reports whether the action visually suppresses content. Skip rules
// do not count toward block statistics.
func (r Rule) Blocks() bool {
	return r.Action == ActionHide || r.Action == ActionRemove
}

// Selector builds a rule from a CSS selector. The selector is compiled once;
// an invalid selector is a programming error in a platform rule table.
func Selector(name, css string, action Action) Rule {
	m := cascadia.MustCompile(css)
	return Rule{
		Name:   name,
		Action: action,
		Match:  func(el *dom.Element) bool { return m.Match(el.Node()) },
	}
}

// Tag matches by exact tag name. Custom-element tag names are how several
// platforms label their short-form shelves.
func Tag(name, tag string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match:  func(el *dom.Element) bool { return el.Tag() == tag },
	}
}

// AttrEquals matches an attribute with an exact value.
func AttrEquals(name, key, val string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			v, ok := el.Attr(key)
			return ok && v == val
		},
	}
}

// AttrPresent matches by attribute presence alone, regardless of value.
// Boolean custom-element attributes like is-shorts parse with empty values.
func AttrPresent(name, key string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			_, ok := el.Attr(key)
			return ok
		},
	}
}

// AttrContains matches an attribute whose value contains sub.
func AttrContains(name, key, sub string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			v, ok := el.Attr(key)
			return ok && strings.Contains(v, sub)
		},
	}
}

// HrefSegment matches anchors whose href path contains the given segment,
// e.g. "/shorts/" or "/reel/". Scheme-relative and absolute hrefs are
// normalized through net/url; anything unparseable does not match.
func HrefSegment(name, segment string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			return el.Tag() == "a" && hrefPathContains(el, segment)
		},
	}
}

// HrefPrefix matches anchors whose href path starts with prefix.
func HrefPrefix(name, prefix string, action Action) Rule {
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			if el.Tag() != "a" {
				return false
			}
			p, ok := hrefPath(el)
			return ok && strings.HasPrefix(p, prefix)
		},
	}
}

// Containing matches elements that satisfy the container selector and hold at
// least one descendant matching inner. This expresses "article containing a
// shorts anchor" style rules where the anchor itself is too small to hide.
func Containing(name, containerCSS string, inner func(*dom.Element) bool, action Action) Rule {
	m := cascadia.MustCompile(containerCSS)
	return Rule{
		Name:   name,
		Action: action,
		Match: func(el *dom.Element) bool {
			if !m.Match(el.Node()) {
				return false
			}
			found := false
			el.Walk(func(d *dom.Element) bool {
				if d.Node() != el.Node() && inner(d) {
					found = true
					return false
				}
				return true
			})
			return found
		},
	}
}

// AnchorWithSegment returns a predicate for use inside Containing.
func AnchorWithSegment(segment string) func(*dom.Element) bool {
	return func(el *dom.Element) bool {
		return el.Tag() == "a" && hrefPathContains(el, segment)
	}
}

func hrefPath(el *dom.Element) (string, bool) {
	href, ok := el.Attr("href")
	if !ok || href == "" {
		return "", false
	}
	// Never interpret executable schemes.
	lower := strings.ToLower(strings.TrimSpace(href))
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return u.Path, true
}

func hrefPathContains(el *dom.Element, segment string) bool {
	p, ok := hrefPath(el)
	return ok && strings.Contains(p, segment)
}
