package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/livepreview/internal/platform/errors"
	"github.com/louisbranch/livepreview/internal/preview"
	"github.com/louisbranch/livepreview/internal/services/preview/static"
	"github.com/louisbranch/livepreview/internal/services/shared/htmx"
	"golang.org/x/net/websocket"
)

type opResponse struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

type updateResponse struct {
	Kind         string       `json:"kind"`
	Sequence     int64        `json:"sequence"`
	Found        bool         `json:"found"`
	Appended     int          `json:"appended"`
	Removed      int          `json:"removed"`
	Replaced     int          `json:"replaced"`
	Unchanged    int          `json:"unchanged"`
	HeadAppended int          `json:"head_appended"`
	TitleSet     bool         `json:"title_set"`
	Ops          []opResponse `json:"ops,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func newUpdateResponse(update preview.Update) updateResponse {
	resp := updateResponse{
		Kind:         string(update.Kind),
		Sequence:     update.Sequence,
		Found:        update.Result.Found,
		Appended:     update.Result.Appended,
		Removed:      update.Result.Removed,
		Replaced:     update.Result.Replaced,
		Unchanged:    update.Result.Unchanged,
		HeadAppended: update.Result.HeadAppended,
		TitleSet:     update.Result.TitleSet,
	}
	for _, op := range update.Result.Ops {
		resp.Ops = append(resp.Ops, opResponse{Kind: string(op.Kind), Index: op.Index})
	}
	return resp
}

func newHandler(service *previewService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static.FS))))
	mux.HandleFunc("/{$}", service.handlePage)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, apperrors.WithMetadata(apperrors.CodeNotFound, "no such route",
			map[string]string{"path": r.URL.Path}))
	})
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		service.handleUpdate(w, r, preview.KindLoad)
	})
	mux.HandleFunc("/patch", func(w http.ResponseWriter, r *http.Request) {
		service.handleUpdate(w, r, preview.KindPatch)
	})

	wsHandler := websocket.Handler(service.handleWSConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed"))
			return
		}
		if service.hub.isClosed() {
			writeError(w, apperrors.New(apperrors.CodeUnavailable, "preview is shutting down"))
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

func (s *previewService) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed"))
		return
	}
	full := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return s.session.Render(w)
	})
	// Title and fragment must come from the same sequence.
	state := s.session.State()
	fragment := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, state.Body)
		return err
	})
	htmx.RenderPage(w, r, fragment, full, htmx.TitleTag(state.Title))
}

func (s *previewService) handleUpdate(w http.ResponseWriter, r *http.Request, kind preview.Kind) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed"))
		return
	}
	markup, err := readMarkup(w, r, s.maxBodyBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query()
	scroll, err := parseScroll(query.Get("scroll"))
	if err != nil {
		writeError(w, err)
		return
	}
	baseURI := query.Get("base")

	ctx := r.Context()
	update := s.publish(ctx, func() preview.Update {
		if kind == preview.KindLoad {
			return s.session.Load(markup, baseURI, scroll)
		}
		return s.session.Update(ctx, markup, baseURI, scroll)
	})
	writeJSON(w, http.StatusOK, newUpdateResponse(update))
}

func (s *previewService) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(conn)
	if !s.hub.join(peer) {
		return
	}
	defer s.hub.leave(peer)

	hello := wsFrame{
		Type:    frameTypeHello,
		Payload: mustJSON(helloPayload{RootID: s.session.RootID(), Sequence: s.session.Sequence()}),
	}
	if err := peer.writeFrame(hello); err != nil {
		return
	}

	// Browsers never send frames; reading only detects disconnects.
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("preview: websocket read: %v", err)
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("preview: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	body := errorBody{Code: string(apperrors.GetCode(err)), Message: "internal error"}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		body.Message = domainErr.Message
		body.Metadata = domainErr.Metadata
	} else {
		log.Printf("preview: unexpected error: %v", err)
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}
