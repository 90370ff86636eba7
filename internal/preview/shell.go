// Package preview owns the live preview page: the shell document that wraps
// rendered content in a root container, and the session that keeps it in
// sync with incoming markup.
package preview

import (
	"math"
	"strconv"
	"strings"

	"github.com/louisbranch/livepreview/internal/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultTitle is the title of a freshly loaded shell.
const DefaultTitle = "Preview"

// SequenceMetaName names the head meta that carries the sequence a page was
// rendered at. Browsers compare it with the stream's hello frame to detect
// updates they missed between loading the page and connecting.
const SequenceMetaName = "preview-sequence"

// Shell builds the preview page for rootID with body as the root container's
// content. The body is parsed in the container's context so stray closing
// tags cannot escape it.
func Shell(rootID string, body string, scriptSrc string) *dom.Document {
	doc := dom.New()

	charset := dom.NewElement(atom.Meta)
	dom.SetAttr(charset, "charset", "UTF-8")
	doc.AppendHead(charset)
	doc.SetTitle(DefaultTitle)
	doc.AppendHead(dom.NewElement(atom.Style))
	if scriptSrc != "" {
		script := dom.NewElement(atom.Script)
		dom.SetAttr(script, "src", scriptSrc)
		doc.AppendHead(script)
	}

	root := dom.NewElement(atom.Div)
	dom.SetAttr(root, "id", rootID)
	doc.AppendChild(doc.Body(), root)
	for _, n := range parseInto(root, body) {
		doc.AppendChild(root, n)
	}
	return doc
}

func parseInto(context *html.Node, body string) []*html.Node {
	nodes, err := html.ParseFragment(strings.NewReader(body), context)
	if err != nil {
		return nil
	}
	return nodes
}

// ApplyBaseURI points relative URLs in doc at baseURI. The first base
// element is updated in place; without one, a new base is prepended to head.
// An empty baseURI leaves the document untouched.
func ApplyBaseURI(doc *dom.Document, baseURI string) {
	if baseURI == "" {
		return
	}
	if base := dom.Find(doc.Root(), dom.IsElement(atom.Base)); base != nil {
		dom.SetAttr(base, "href", baseURI)
		return
	}
	base := dom.NewElement(atom.Base)
	dom.SetAttr(base, "href", baseURI)
	doc.PrependHead(base)
}

// StampSequence records sequence in the page's sequence meta, adding the
// meta to head when missing.
func StampSequence(doc *dom.Document, sequence int64) {
	meta := dom.Find(doc.Head(), func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
			return false
		}
		name, ok := dom.Attr(n, "name")
		return ok && name == SequenceMetaName
	})
	if meta == nil {
		meta = dom.NewElement(atom.Meta)
		dom.SetAttr(meta, "name", SequenceMetaName)
		doc.AppendHead(meta)
	}
	dom.SetAttr(meta, "content", strconv.FormatInt(sequence, 10))
}

// ClampScroll limits a scroll fraction to [0, 1]. NaN becomes 0.
func ClampScroll(fraction float64) float64 {
	if math.IsNaN(fraction) {
		return 0
	}
	return math.Min(math.Max(fraction, 0), 1)
}
