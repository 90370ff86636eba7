// Package patch reconciles the direct children of a live page container
// against freshly rendered markup.
//
// Only direct element children are compared, by position, using their full
// serialized markup. Children that serialize identically keep their node
// identity; everything else is appended, removed, or replaced wholesale.
package patch

import "golang.org/x/net/html"

// Page is the mutation sink the reconciler writes through. A live document
// implements it directly; tests wrap one to record calls.
type Page interface {
	ElementByID(id string) *html.Node
	AppendHead(n *html.Node)
	SetTitle(title string)
	AppendChild(parent, child *html.Node)
	RemoveChild(parent, child *html.Node)
	ReplaceChild(parent, newChild, oldChild *html.Node)
}
