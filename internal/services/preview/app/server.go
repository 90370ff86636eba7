// Package server hosts the live preview HTTP surface: page rendering,
// markup ingestion, and the websocket stream that replays updates in
// connected browsers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/livepreview/internal/platform/timeouts"
	"github.com/louisbranch/livepreview/internal/preview"
	"github.com/louisbranch/livepreview/internal/services/preview/static"
	"github.com/louisbranch/livepreview/internal/services/preview/storage"
)

// DefaultMaxBodyBytes caps one markup upload.
const DefaultMaxBodyBytes int64 = 4 << 20

// Config defines the inputs for the preview server.
type Config struct {
	HTTPAddr          string
	RootID            string
	MaxBodyBytes      int64
	Store             storage.SnapshotStore
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the preview HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	service         *previewService
}

// previewService binds one session to its transport and persistence.
type previewService struct {
	session      *preview.Session
	store        storage.SnapshotStore
	hub          *previewHub
	maxBodyBytes int64

	// publishMu keeps session order and broadcast order identical.
	publishMu sync.Mutex
}

func newPreviewService(session *preview.Session, store storage.SnapshotStore, maxBodyBytes int64) *previewService {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &previewService{
		session:      session,
		store:        store,
		hub:          newPreviewHub(),
		maxBodyBytes: maxBodyBytes,
	}
}

// publish applies one update to the session, persists the resulting root
// content, and fans it out to connected browsers.
func (s *previewService) publish(ctx context.Context, apply func() preview.Update) preview.Update {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	update := apply()
	s.persist(ctx, update)
	delivered := s.hub.broadcast(updateFrame(update))
	log.Printf("preview %s seq=%d found=%t appended=%d removed=%d replaced=%d unchanged=%d head=%d peers=%d",
		update.Kind, update.Sequence, update.Result.Found,
		update.Result.Appended, update.Result.Removed, update.Result.Replaced, update.Result.Unchanged,
		update.Result.HeadAppended, delivered)
	return update
}

func (s *previewService) persist(ctx context.Context, update preview.Update) {
	if s.store == nil {
		return
	}
	state := s.session.State()
	err := s.store.PutSnapshot(ctx, storage.Snapshot{
		RootID:   s.session.RootID(),
		Markup:   state.Body,
		Head:     state.Head,
		Title:    state.Title,
		BaseURI:  state.BaseURI,
		Sequence: state.Sequence,
	})
	if err != nil {
		log.Printf("preview: persist snapshot seq=%d: %v", update.Sequence, err)
	}
}

// restore seeds the session from the stored snapshot, if any.
func (s *previewService) restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snapshot, err := s.store.GetSnapshot(ctx, s.session.RootID())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.session.Restore(preview.State{
		Sequence: snapshot.Sequence,
		Title:    snapshot.Title,
		Head:     snapshot.Head,
		Body:     snapshot.Markup,
		BaseURI:  snapshot.BaseURI,
	})
	log.Printf("preview: restored root %q at seq=%d", snapshot.RootID, snapshot.Sequence)
	return nil
}

// NewServer builds a configured preview server and restores the last
// snapshot when a store is configured.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	session, err := preview.NewSession(config.RootID, static.PatchScriptPath)
	if err != nil {
		return nil, err
	}
	service := newPreviewService(session, config.Store, config.MaxBodyBytes)
	if err := service.restore(ctx); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(service),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		service:         service,
	}, nil
}

// Run creates and serves a preview server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init preview server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve preview: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("preview server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("preview server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		// Websocket connections are hijacked and not tracked by Shutdown.
		s.service.hub.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil || s.service == nil {
		return
	}
	s.service.hub.close()
}
