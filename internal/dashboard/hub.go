package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aimibot/internal/cache"
)

const (
	writeWait   = 10 * time.Second
	sendBacklog = 16
)

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type subscriber interface {
	Subscribe(ctx context.Context, channel string) (*cache.Subscription, error)
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the open websocket connections and fans every sale out to them.
// A peer that cannot keep up is dropped rather than blocking the others.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	peers map[*peer]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, peers: make(map[*peer]struct{})}
}

// Len returns the number of connected peers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast wraps a sale payload in a sale_created frame and queues it for
// every peer.
func (h *Hub) Broadcast(payload string) {
	if !json.Valid([]byte(payload)) {
		h.logger.Warn("dashboard_invalid_payload", "payload", payload)
		return
	}
	frame, err := json.Marshal(event{Event: "sale_created", Data: json.RawMessage(payload)})
	if err != nil {
		h.logger.Error("dashboard_marshal_failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		select {
		case p.send <- frame:
		default:
			h.logger.Warn("dashboard_peer_slow", "remote", p.conn.RemoteAddr().String())
			delete(h.peers, p)
			close(p.send)
		}
	}
}

// Run relays the sales channel until ctx is done.
func (h *Hub) Run(ctx context.Context, sub subscriber) error {
	s, err := sub.Subscribe(ctx, Channel)
	if err != nil {
		return err
	}
	defer s.Close()
	h.logger.Info("dashboard listening for sales", "channel", Channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.C:
			if !ok {
				return nil
			}
			h.Broadcast(msg)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) *peer {
	p := &peer{conn: conn, send: make(chan []byte, sendBacklog)}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", "remote", conn.RemoteAddr().String())
	return p
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
	h.mu.Unlock()
}

// serve pumps frames to the peer and drains its reads so close frames are
// noticed. It returns once the connection is gone.
func (h *Hub) serve(p *peer) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := p.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.remove(p)
		_ = p.conn.Close()
		h.logger.Info("dashboard client disconnected", "remote", p.conn.RemoteAddr().String())
	}()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-p.send:
			if !ok {
				_ = p.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
