package preview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/louisbranch/livepreview/internal/dom"
	"github.com/louisbranch/livepreview/internal/patch"
	"golang.org/x/net/html"
)

// Kind distinguishes full reloads from incremental patches.
type Kind string

const (
	KindLoad  Kind = "load"
	KindPatch Kind = "patch"
)

// Update describes one change to the session page, in the shape browsers
// need to replay it.
type Update struct {
	Kind     Kind
	Sequence int64
	RootID   string
	Markup   string
	BaseURI  string
	Scroll   float64
	Result   patch.Result
}

// State is a consistent copy of the session page, taken under one lock.
type State struct {
	Sequence int64
	Title    string
	// Head holds the head nodes migrated from patches since the last load.
	Head    string
	Body    string
	BaseURI string
}

// Session holds the authoritative live page for one root container.
//
// HTTP handlers call into a Session concurrently; the document itself is
// single-writer, so every access goes through mu.
type Session struct {
	rootID     string
	scriptSrc  string
	reconciler *patch.Reconciler

	mu       sync.Mutex
	doc      *dom.Document
	head     []string
	sequence int64
	baseURI  string
}

// sessionPage records every head node the reconciler migrates so the head
// can be persisted and rebuilt.
type sessionPage struct {
	*dom.Document
	head *[]string
}

func (p sessionPage) AppendHead(n *html.Node) {
	*p.head = append(*p.head, dom.OuterHTML(n))
	p.Document.AppendHead(n)
}

// NewSession creates a session whose page starts as an empty shell.
func NewSession(rootID string, scriptSrc string) (*Session, error) {
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return nil, errors.New("root id is required")
	}
	doc := Shell(rootID, "", scriptSrc)
	StampSequence(doc, 0)
	return &Session{
		rootID:     rootID,
		scriptSrc:  scriptSrc,
		reconciler: patch.NewReconciler(),
		doc:        doc,
	}, nil
}

// RootID returns the container id this session reconciles.
func (s *Session) RootID() string {
	return s.rootID
}

// Load replaces the whole page with a fresh shell around body.
func (s *Session) Load(body string, baseURI string, scroll float64) Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = Shell(s.rootID, body, s.scriptSrc)
	s.head = nil
	s.baseURI = baseURI
	ApplyBaseURI(s.doc, baseURI)
	s.sequence++
	StampSequence(s.doc, s.sequence)
	return Update{
		Kind:     KindLoad,
		Sequence: s.sequence,
		RootID:   s.rootID,
		Markup:   body,
		BaseURI:  baseURI,
		Scroll:   ClampScroll(scroll),
		Result:   patch.Result{Found: true},
	}
}

// Update applies the base URI, then reconciles the root container against
// markup. An empty baseURI keeps the current one.
func (s *Session) Update(ctx context.Context, markup string, baseURI string, scroll float64) Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	if baseURI != "" {
		s.baseURI = baseURI
		ApplyBaseURI(s.doc, baseURI)
	}
	result := s.reconciler.Apply(ctx, sessionPage{Document: s.doc, head: &s.head}, markup, s.rootID)
	s.sequence++
	StampSequence(s.doc, s.sequence)
	return Update{
		Kind:     KindPatch,
		Sequence: s.sequence,
		RootID:   s.rootID,
		Markup:   markup,
		BaseURI:  baseURI,
		Scroll:   ClampScroll(scroll),
		Result:   result,
	}
}

// Render writes the full live page.
func (s *Session) Render(w io.Writer) error {
	var buf bytes.Buffer
	s.mu.Lock()
	err := s.doc.Render(&buf)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Sequence returns the number of updates applied so far.
func (s *Session) Sequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// State returns the session page as of the last applied update.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Sequence: s.sequence,
		Title:    s.doc.Title(),
		Head:     strings.Join(s.head, ""),
		Body:     dom.InnerHTML(s.doc.ElementByID(s.rootID)),
		BaseURI:  s.baseURI,
	}
}

// Restore rebuilds the page from a persisted state without counting it as
// a new update; the sequence resumes from the stored value.
func (s *Session) Restore(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Sequence > s.sequence {
		s.sequence = state.Sequence
	}
	s.doc = Shell(s.rootID, state.Body, s.scriptSrc)
	StampSequence(s.doc, s.sequence)
	s.head = nil
	page := sessionPage{Document: s.doc, head: &s.head}
	for _, n := range dom.ElementChildren(dom.Parse("<head>" + state.Head + "</head>").Head()) {
		page.AppendHead(n)
	}
	s.doc.SetTitle(state.Title)
	s.baseURI = state.BaseURI
	ApplyBaseURI(s.doc, state.BaseURI)
}
