package htmx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type testComponent struct {
	body string
	err  error
}

func (c testComponent) Render(_ context.Context, w io.Writer) error {
	if c.err != nil {
		return c.err
	}
	_, err := w.Write([]byte(c.body))
	return err
}

func TestIsHTMXRequest(t *testing.T) {
	t.Run("missing_request_is_not_htmx", func(t *testing.T) {
		t.Parallel()
		if got := IsHTMXRequest(nil); got {
			t.Fatalf("IsHTMXRequest(nil) = true, want false")
		}
	})

	t.Run("true_request_is_htmx", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestHeaderKey, "TRUE")
		if got := IsHTMXRequest(r); !got {
			t.Fatalf("IsHTMXRequest(request) = false, want true")
		}
	})
}

func TestTitleTag(t *testing.T) {
	t.Parallel()
	if got, want := TitleTag(`Notes <draft>`), "<title>Notes &lt;draft&gt;</title>"; got != want {
		t.Fatalf("TitleTag(...) = %q, want %q", got, want)
	}
	if got := TitleTag("   "); got != "" {
		t.Fatalf("TitleTag(blank) = %q, want empty", got)
	}
}

func TestRenderPageForNonHTMXUsesFullRender(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	fragment := testComponent{body: "<p>fragment</p>"}
	full := testComponent{body: "<html><body>full</body></html>"}

	RenderPage(w, r, fragment, full, TitleTag("Preview"))
	if got := w.Body.String(); got != "<html><body>full</body></html>" {
		t.Fatalf("rendered body = %q, want full page body", got)
	}
	if got := w.Header().Get("Vary"); got != RequestHeaderKey {
		t.Fatalf("Vary = %q, want %q", got, RequestHeaderKey)
	}
}

func TestRenderPageForHTMXInjectsMissingTitle(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestHeaderKey, "true")
	w := httptest.NewRecorder()

	RenderPage(w, r, testComponent{body: "<p>fragment</p>"}, nil, TitleTag("Chapter"))

	got := w.Body.String()
	if got != "<title>Chapter</title><p>fragment</p>" {
		t.Fatalf("rendered body = %q", got)
	}
}

func TestRenderPageForHTMXPreservesExistingTitle(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestHeaderKey, "true")
	w := httptest.NewRecorder()

	RenderPage(w, r, testComponent{body: "<TITLE>Set</TITLE><p>x</p>"}, nil, TitleTag("Injected"))

	got := w.Body.String()
	if strings.Contains(got, "Injected") {
		t.Fatalf("expected existing title preserved, got %q", got)
	}
}

func TestRenderPageForHTMXRenderError(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestHeaderKey, "true")
	w := httptest.NewRecorder()

	RenderPage(w, r, testComponent{err: errors.New("boom")}, nil, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
