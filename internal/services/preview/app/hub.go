package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/louisbranch/livepreview/internal/platform/timeouts"
	"github.com/louisbranch/livepreview/internal/preview"
	"golang.org/x/net/websocket"
)

const (
	frameTypeHello = "hello"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type helloPayload struct {
	RootID   string `json:"root_id"`
	Sequence int64  `json:"sequence"`
}

type updatePayload struct {
	Sequence int64   `json:"sequence"`
	RootID   string  `json:"root_id"`
	Markup   string  `json:"markup"`
	BaseURI  string  `json:"base_uri,omitempty"`
	Scroll   float64 `json:"scroll"`
}

func updateFrame(update preview.Update) wsFrame {
	return wsFrame{
		Type: string(update.Kind),
		Payload: mustJSON(updatePayload{
			Sequence: update.Sequence,
			RootID:   update.RootID,
			Markup:   update.Markup,
			BaseURI:  update.BaseURI,
			Scroll:   update.Scroll,
		}),
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// wsPeer serializes frame writes to one browser connection.
type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebsocketWrite))
	}
	return p.encoder.Encode(frame)
}

// previewHub tracks connected browsers and fans updates out to them.
type previewHub struct {
	mu     sync.Mutex
	peers  map[*wsPeer]struct{}
	closed bool
}

func newPreviewHub() *previewHub {
	return &previewHub{peers: make(map[*wsPeer]struct{})}
}

// join registers peer; it reports false once the hub is closed.
func (h *previewHub) join(peer *wsPeer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[peer] = struct{}{}
	return true
}

func (h *previewHub) leave(peer *wsPeer) {
	h.mu.Lock()
	delete(h.peers, peer)
	h.mu.Unlock()
}

func (h *previewHub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *previewHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// broadcast sends frame to every peer and drops peers whose write fails.
// It returns the number of peers that received the frame.
func (h *previewHub) broadcast(frame wsFrame) int {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.peers))
	for peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	delivered := 0
	for _, peer := range peers {
		if err := peer.writeFrame(frame); err != nil {
			h.leave(peer)
			if peer.conn != nil {
				_ = peer.conn.Close()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// close disconnects every peer and rejects later joins.
func (h *previewHub) close() {
	h.mu.Lock()
	h.closed = true
	peers := h.peers
	h.peers = make(map[*wsPeer]struct{})
	h.mu.Unlock()

	for peer := range peers {
		if peer.conn != nil {
			_ = peer.conn.Close()
		}
	}
}
