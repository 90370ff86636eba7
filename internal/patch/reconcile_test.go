package patch

import (
	"context"
	"testing"

	"github.com/louisbranch/livepreview/internal/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// recordingPage forwards to a live document and counts container mutations.
type recordingPage struct {
	*dom.Document
	appends  int
	removes  int
	replaces int
	heads    int
	titles   []string
}

func (p *recordingPage) AppendHead(n *html.Node) {
	p.heads++
	p.Document.AppendHead(n)
}

func (p *recordingPage) SetTitle(title string) {
	p.titles = append(p.titles, title)
	p.Document.SetTitle(title)
}

func (p *recordingPage) AppendChild(parent, child *html.Node) {
	p.appends++
	p.Document.AppendChild(parent, child)
}

func (p *recordingPage) RemoveChild(parent, child *html.Node) {
	p.removes++
	p.Document.RemoveChild(parent, child)
}

func (p *recordingPage) ReplaceChild(parent, newChild, oldChild *html.Node) {
	p.replaces++
	p.Document.ReplaceChild(parent, newChild, oldChild)
}

func newPage(t *testing.T, rootInner string) *recordingPage {
	t.Helper()
	return &recordingPage{Document: dom.Parse(`<div id="root">` + rootInner + `</div>`)}
}

func rootChildren(t *testing.T, page *recordingPage) []*html.Node {
	t.Helper()
	root := page.ElementByID("root")
	if root == nil {
		t.Fatal("expected root container")
	}
	return dom.ElementChildren(root)
}

func TestApplyIdenticalChildrenLeavesNodesUntouched(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<h1 class="t">Title</h1><p>one <em>two</em></p>`)
	before := rootChildren(t, page)

	result := Apply(context.Background(), page, `<h1 class="t">Title</h1><p>one <em>two</em></p>`, "root")

	if page.appends+page.removes+page.replaces != 0 {
		t.Fatalf("mutations = %d/%d/%d, want none", page.appends, page.removes, page.replaces)
	}
	after := rootChildren(t, page)
	if len(after) != len(before) {
		t.Fatalf("children = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("child %d identity changed", i)
		}
	}
	if result.Unchanged != 2 || result.Changed() {
		t.Fatalf("result = %+v, want 2 unchanged and no changes", result)
	}
}

func TestApplyReplacesOnlyDifferingPositions(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<p class="a">A</p><p>B</p>`)
	before := rootChildren(t, page)

	result := Apply(context.Background(), page, `<p class="a">A</p><section>C</section>`, "root")

	after := rootChildren(t, page)
	if len(after) != 2 {
		t.Fatalf("children = %d, want 2", len(after))
	}
	if after[0] != before[0] {
		t.Fatal("expected first child to keep its identity")
	}
	if got := dom.OuterHTML(after[1]); got != "<section>C</section>" {
		t.Fatalf("second child = %q, want %q", got, "<section>C</section>")
	}
	if before[1].Parent != nil {
		t.Fatal("expected replaced child to be detached")
	}
	if page.replaces != 1 || page.appends != 0 || page.removes != 0 {
		t.Fatalf("mutations = %d/%d/%d, want 0/0/1", page.appends, page.removes, page.replaces)
	}
	if len(result.Ops) != 1 || result.Ops[0] != (Op{Kind: OpReplace, Index: 1}) {
		t.Fatalf("ops = %+v, want one replace at 1", result.Ops)
	}
}

func TestApplyAppendsExtraChildren(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<p>one</p>`)
	markup := `<p>one</p><p>two</p><ul><li>three</li></ul>`
	result := Apply(context.Background(), page, markup, "root")

	after := rootChildren(t, page)
	want := []string{"<p>one</p>", "<p>two</p>", "<ul><li>three</li></ul>"}
	if len(after) != len(want) {
		t.Fatalf("children = %d, want %d", len(after), len(want))
	}
	for i := range want {
		if got := dom.OuterHTML(after[i]); got != want[i] {
			t.Fatalf("child %d = %q, want %q", i, got, want[i])
		}
	}
	if result.Appended != 2 || result.Unchanged != 1 {
		t.Fatalf("result = %+v, want 2 appended 1 unchanged", result)
	}
}

func TestApplyRemovesAllChildrenForEmptyMarkup(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<p>one</p><p>two</p>`)
	result := Apply(context.Background(), page, "", "root")

	if got := len(rootChildren(t, page)); got != 0 {
		t.Fatalf("children = %d, want 0", got)
	}
	if result.Removed != 2 || page.removes != 2 {
		t.Fatalf("removed = %d (calls %d), want 2", result.Removed, page.removes)
	}
}

func TestApplyMissingContainerIsNoOp(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<p>keep</p>`)
	before := page.String()

	result := Apply(context.Background(), page, `<title>New</title><style>p{}</style><p>x</p>`, "absent")

	if result.Found {
		t.Fatal("expected Found = false")
	}
	if got := page.String(); got != before {
		t.Fatalf("page changed:\n got %q\nwant %q", got, before)
	}
	if page.heads != 0 || len(page.titles) != 0 {
		t.Fatalf("head/title calls = %d/%d, want none", page.heads, len(page.titles))
	}
}

func TestApplyNilPageIsNoOp(t *testing.T) {
	t.Parallel()

	if result := Apply(context.Background(), nil, "<p>x</p>", "root"); result.Found {
		t.Fatal("expected Found = false for nil page")
	}
}

func TestApplyAppendsStyleOnEveryCall(t *testing.T) {
	t.Parallel()

	page := newPage(t, "")
	markup := `<style>p { color: red }</style><p>x</p>`

	Apply(context.Background(), page, markup, "root")
	Apply(context.Background(), page, markup, "root")

	styles := dom.FindAll(page.Head(), dom.IsElement(atom.Style))
	if len(styles) != 2 {
		t.Fatalf("head styles = %d, want 2", len(styles))
	}
	if styles[0] == styles[1] {
		t.Fatal("expected distinct cloned style nodes")
	}
}

func TestApplyMigratesStylesheetLinksAndFirstViewport(t *testing.T) {
	t.Parallel()

	page := newPage(t, "")
	markup := `<link rel="stylesheet" href="a.css">` +
		`<link rel="icon" href="i.png">` +
		`<link rel="alternate stylesheet" href="b.css">` +
		`<meta name="viewport" content="first">` +
		`<meta name="Viewport" content="second">` +
		`<p>x</p>`

	result := Apply(context.Background(), page, markup, "root")

	if result.HeadAppended != 3 {
		t.Fatalf("HeadAppended = %d, want 3", result.HeadAppended)
	}
	links := dom.FindAll(page.Head(), dom.IsElement(atom.Link))
	if len(links) != 2 {
		t.Fatalf("head links = %d, want 2", len(links))
	}
	metas := dom.FindAll(page.Head(), dom.IsElement(atom.Meta))
	if len(metas) != 1 {
		t.Fatalf("head metas = %d, want 1", len(metas))
	}
	if content, _ := dom.Attr(metas[0], "content"); content != "first" {
		t.Fatalf("viewport content = %q, want %q", content, "first")
	}
}

func TestApplyOverwritesTitle(t *testing.T) {
	t.Parallel()

	page := &recordingPage{Document: dom.Parse(`<title>Preview</title><div id="root"></div>`)}
	result := Apply(context.Background(), page, `<title>Chapter 1</title><h1>Chapter 1</h1>`, "root")

	if !result.TitleSet {
		t.Fatal("expected TitleSet")
	}
	if got := page.Title(); got != "Chapter 1" {
		t.Fatalf("Title() = %q, want %q", got, "Chapter 1")
	}

	result = Apply(context.Background(), page, `<h1>Chapter 1</h1>`, "root")
	if result.TitleSet {
		t.Fatal("expected TitleSet = false without a title element")
	}
	if got := page.Title(); got != "Chapter 1" {
		t.Fatalf("Title() = %q, want unchanged %q", got, "Chapter 1")
	}
}

func TestApplyIgnoresWhitespaceBetweenChildren(t *testing.T) {
	t.Parallel()

	page := newPage(t, "\n  <p>a</p>\n  <p>b</p>\n")
	result := Apply(context.Background(), page, "<p>a</p><p>b</p>", "root")
	if result.Changed() {
		t.Fatalf("result = %+v, want no changes", result)
	}
}

func TestApplyComparesDescendantMarkup(t *testing.T) {
	t.Parallel()

	page := newPage(t, `<div><span data-x="1">deep</span></div>`)
	result := Apply(context.Background(), page, `<div><span data-x="2">deep</span></div>`, "root")
	if result.Replaced != 1 {
		t.Fatalf("Replaced = %d, want 1", result.Replaced)
	}
}
