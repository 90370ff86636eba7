package patch

import (
	"context"
	"strings"

	"github.com/louisbranch/livepreview/internal/dom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const tracerName = "github.com/louisbranch/livepreview/internal/patch"

// OpKind names one child-list mutation.
type OpKind string

const (
	OpAppend  OpKind = "append"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Op records one mutation applied to the container at a child position.
type Op struct {
	Kind  OpKind
	Index int
}

// Result summarizes one reconcile pass.
type Result struct {
	// Found is false when no element carried the container id; nothing was
	// touched in that case.
	Found        bool
	Appended     int
	Removed      int
	Replaced     int
	Unchanged    int
	HeadAppended int
	TitleSet     bool
	Ops          []Op
}

// Changed reports whether the container child list was mutated.
func (r Result) Changed() bool {
	return r.Appended+r.Removed+r.Replaced > 0
}

// Reconciler applies markup to a page container.
type Reconciler struct {
	tracer trace.Tracer
}

// NewReconciler returns a reconciler that traces through the global
// OpenTelemetry provider.
func NewReconciler() *Reconciler {
	return &Reconciler{tracer: otel.Tracer(tracerName)}
}

// Apply reconciles the container identified by containerID against markup.
//
// Head elements from the markup are migrated into the page first: each
// style and stylesheet link is cloned into the head, the first viewport
// meta is cloned, and a title overwrites the page title. Repeated calls
// append repeated head nodes.
func (r *Reconciler) Apply(ctx context.Context, page Page, markup string, containerID string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := r.tracerOrDefault()
	_, span := tracer.Start(ctx, "patch.Apply", trace.WithAttributes(
		attribute.String("patch.container_id", containerID),
		attribute.Int("patch.markup_bytes", len(markup)),
	))
	defer span.End()

	var result Result
	if page == nil {
		span.SetAttributes(attribute.Bool("patch.found", false))
		return result
	}
	container := page.ElementByID(containerID)
	if container == nil {
		span.SetAttributes(attribute.Bool("patch.found", false))
		return result
	}
	result.Found = true

	next := dom.Parse(markup)
	migrateHead(page, next, &result)
	reconcileChildren(page, container, next.Body(), &result)

	span.SetAttributes(
		attribute.Bool("patch.found", true),
		attribute.Int("patch.appended", result.Appended),
		attribute.Int("patch.removed", result.Removed),
		attribute.Int("patch.replaced", result.Replaced),
		attribute.Int("patch.unchanged", result.Unchanged),
		attribute.Int("patch.head_appended", result.HeadAppended),
	)
	return result
}

func (r *Reconciler) tracerOrDefault() trace.Tracer {
	if r == nil || r.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return r.tracer
}

// Apply reconciles with a default reconciler.
func Apply(ctx context.Context, page Page, markup string, containerID string) Result {
	return NewReconciler().Apply(ctx, page, markup, containerID)
}

func migrateHead(page Page, next *dom.Document, result *Result) {
	root := next.Root()
	for _, style := range dom.FindAll(root, dom.IsElement(atom.Style)) {
		page.AppendHead(dom.Clone(style))
		result.HeadAppended++
	}
	for _, link := range dom.FindAll(root, isStylesheetLink) {
		page.AppendHead(dom.Clone(link))
		result.HeadAppended++
	}
	if viewport := dom.Find(root, isViewportMeta); viewport != nil {
		page.AppendHead(dom.Clone(viewport))
		result.HeadAppended++
	}
	if title := dom.Find(root, dom.IsElement(atom.Title)); title != nil {
		page.SetTitle(dom.TextContent(title))
		result.TitleSet = true
	}
}

func reconcileChildren(page Page, container *html.Node, nextBody *html.Node, result *Result) {
	oldChildren := dom.ElementChildren(container)
	newChildren := dom.ElementChildren(nextBody)
	n := max(len(oldChildren), len(newChildren))

	for i := 0; i < n; i++ {
		var oldNode, newNode *html.Node
		if i < len(oldChildren) {
			oldNode = oldChildren[i]
		}
		if i < len(newChildren) {
			newNode = newChildren[i]
		}

		switch {
		case oldNode == nil:
			page.AppendChild(container, newNode)
			result.Appended++
			result.Ops = append(result.Ops, Op{Kind: OpAppend, Index: i})
		case newNode == nil:
			page.RemoveChild(container, oldNode)
			result.Removed++
			result.Ops = append(result.Ops, Op{Kind: OpRemove, Index: i})
		case dom.OuterHTML(oldNode) != dom.OuterHTML(newNode):
			page.ReplaceChild(container, newNode, oldNode)
			result.Replaced++
			result.Ops = append(result.Ops, Op{Kind: OpReplace, Index: i})
		default:
			result.Unchanged++
		}
	}
}

func isStylesheetLink(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Link {
		return false
	}
	rel, ok := dom.Attr(n, "rel")
	return ok && dom.HasToken(rel, "stylesheet")
}

func isViewportMeta(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
		return false
	}
	name, ok := dom.Attr(n, "name")
	return ok && strings.EqualFold(strings.TrimSpace(name), "viewport")
}
