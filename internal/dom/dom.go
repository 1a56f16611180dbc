// Package dom provides the headless document tree the blocking engine scans.
// It wraps golang.org/x/net/html nodes with processed-marker bookkeeping and a
// mutation subscription, standing in for a live browser DOM.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HiddenAttr is the presentation marker written on hidden elements, alongside
// an inline display:none style. It is the only attribute this engine writes
// onto third-party markup.
const HiddenAttr = "data-sfb-hidden"

// Document owns one parsed page. Processed markers are kept as a node
// identity set rather than attributes: third-party markup may rewrite its own
// attributes at any time, node identity is stable for the node's lifetime.
type Document struct {
	root    *html.Node
	marked  map[*html.Node]struct{}
	subs    map[int]func(added []*Element)
	nextSub int
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{
		root:   root,
		marked: make(map[*html.Node]struct{}),
		subs:   make(map[int]func([]*Element)),
	}, nil
}

// ParseString is a convenience wrapper for tests and fixtures.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document root element (html).
func (d *Document) Root() *Element {
	for n := d.root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			return &Element{doc: d, node: n}
		}
	}
	return &Element{doc: d, node: d.root}
}

// Body returns the body element, or the root when the document has none.
func (d *Document) Body() *Element {
	var body *Element
	d.Root().Walk(func(e *Element) bool {
		if e.Tag() == "body" {
			body = e
			return false
		}
		return true
	})
	if body == nil {
		return d.Root()
	}
	return body
}

// Observe registers a callback invoked with the roots of every appended
// subtree. The returned cancel function removes the subscription; it is safe
// to call more than once.
func (d *Document) Observe(fn func(added []*Element)) (cancel func()) {
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() { delete(d.subs, id) }
}

// AppendHTML parses fragment in the context of parent, appends the resulting
// nodes and notifies observers with the added element roots.
func (d *Document) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.node)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	var added []*Element
	for _, n := range nodes {
		parent.node.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, &Element{doc: d, node: n})
		}
	}
	if len(added) > 0 {
		for _, fn := range d.subs {
			fn(added)
		}
	}
	return added, nil
}

// HTML serializes the current document state.
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Selection returns a goquery selection over the whole document, used by
// fixtures and diagnostics that want selector-based assertions.
func (d *Document) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

// Element couples one node with its owning document so marker state travels
// with the node reference.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node exposes the underlying html node for selector matching.
func (e *Element) Node() *html.Node { return e.node }

// Tag returns the lowercase tag name, empty for non-element nodes.
func (e *Element) Tag() string {
	if e.node.Type != html.ElementNode {
		return ""
	}
	return e.node.Data
}

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, val string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: val})
}

// Parent returns the parent element, nil at the top of the tree.
func (e *Element) Parent() *Element {
	p := e.node.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	if p == nil {
		return nil
	}
	return &Element{doc: e.doc, node: p}
}

// Detach removes the element from its parent. Detaching an already detached
// element is a no-op.
func (e *Element) Detach() {
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// Mark tags the element as processed. A marked node is never re-evaluated.
func (e *Element) Mark() { e.doc.marked[e.node] = struct{}{} }

// Marked reports whether the element carries the processed marker.
func (e *Element) Marked() bool {
	_, ok := e.doc.marked[e.node]
	return ok
}

// Hide applies the presentation-level block: inline display:none plus the
// hidden marker attribute. Hide does not set the processed marker; actions
// own that.
func (e *Element) Hide() {
	style, _ := e.Attr("style")
	if !strings.Contains(style, "display:none") {
		if style != "" && !strings.HasSuffix(style, ";") {
			style += ";"
		}
		e.SetAttr("style", style+"display:none !important")
	}
	e.SetAttr(HiddenAttr, "1")
}

// Hidden reports whether the element carries the hidden marker attribute.
func (e *Element) Hidden() bool {
	_, ok := e.Attr(HiddenAttr)
	return ok
}

// Contains reports whether other lies within e's subtree (e included).
func (e *Element) Contains(other *Element) bool {
	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// Walk visits e and every descendant element in document order. The visit
// function returns false to stop the walk. Children are captured before the
// visit so an action that detaches the current node does not derail
// traversal of its siblings.
func (e *Element) Walk(visit func(*Element) bool) {
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if !visit(&Element{doc: e.doc, node: n}) {
				return false
			}
		}
		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, c)
		}
		for _, c := range children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(e.node)
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}
