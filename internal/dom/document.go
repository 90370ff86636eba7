// Package dom wraps golang.org/x/net/html trees as a mutable page document.
//
// A Document always has html, head, and body elements. It is not safe for
// concurrent use; callers that share a Document must serialize access.
package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const doctype = "<!DOCTYPE html>"

// Document is a parsed HTML page.
type Document struct {
	root *html.Node
	head *html.Node
	body *html.Node
}

// New returns an empty document.
func New() *Document {
	return Parse("")
}

// Parse builds a document from markup. Malformed input is repaired by the
// HTML5 parsing algorithm; the error path of html.Parse is only reachable
// from reader failures, which a string reader never produces.
func Parse(markup string) *Document {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil || root == nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return fromRoot(root)
}

func fromRoot(root *html.Node) *Document {
	doc := &Document{root: root}
	htmlEl := childElement(root, atom.Html)
	if htmlEl == nil {
		htmlEl = NewElement(atom.Html)
		root.AppendChild(htmlEl)
	}
	doc.head = childElement(htmlEl, atom.Head)
	if doc.head == nil {
		doc.head = NewElement(atom.Head)
		if first := htmlEl.FirstChild; first != nil {
			htmlEl.InsertBefore(doc.head, first)
		} else {
			htmlEl.AppendChild(doc.head)
		}
	}
	doc.body = childElement(htmlEl, atom.Body)
	if doc.body == nil {
		doc.body = NewElement(atom.Body)
		htmlEl.AppendChild(doc.body)
	}
	return doc
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Head returns the head element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// ElementByID returns the first element in document order whose id
// attribute equals id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return Find(d.root, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// Title returns the text of the first title element.
func (d *Document) Title() string {
	title := Find(d.root, IsElement(atom.Title))
	if title == nil {
		return ""
	}
	return TextContent(title)
}

// SetTitle replaces the title text, creating a title element in head when
// the document has none.
func (d *Document) SetTitle(title string) {
	el := Find(d.root, IsElement(atom.Title))
	if el == nil {
		el = NewElement(atom.Title)
		d.head.AppendChild(el)
	}
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	if title != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	}
}

// AppendHead appends n to the head element.
func (d *Document) AppendHead(n *html.Node) {
	d.AppendChild(d.head, n)
}

// PrependHead inserts n as the first child of the head element.
func (d *Document) PrependHead(n *html.Node) {
	detach(n)
	if first := d.head.FirstChild; first != nil {
		d.head.InsertBefore(n, first)
		return
	}
	d.head.AppendChild(n)
}

// AppendChild moves child to the end of parent's child list.
func (d *Document) AppendChild(parent, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	detach(child)
	parent.AppendChild(child)
}

// RemoveChild detaches child when parent owns it.
func (d *Document) RemoveChild(parent, child *html.Node) {
	if parent == nil || child == nil || child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
}

// ReplaceChild puts newChild where oldChild was and detaches oldChild.
func (d *Document) ReplaceChild(parent, newChild, oldChild *html.Node) {
	if parent == nil || newChild == nil || oldChild == nil || oldChild.Parent != parent {
		return
	}
	if newChild == oldChild {
		return
	}
	detach(newChild)
	parent.InsertBefore(newChild, oldChild)
	parent.RemoveChild(oldChild)
}

// Render writes the whole document, prefixed by an HTML5 doctype when the
// tree does not already carry one.
func (d *Document) Render(w io.Writer) error {
	hasDoctype := false
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			hasDoctype = true
			break
		}
	}
	if !hasDoctype {
		if _, err := io.WriteString(w, doctype); err != nil {
			return err
		}
	}
	return html.Render(w, d.root)
}

// String returns the rendered document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func childElement(parent *html.Node, a atom.Atom) *html.Node {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}
