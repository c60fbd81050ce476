// Package feed is a read-only market-data broadcaster: it drains an
// engine's event channel and fans Trade/BookSnapshot events out to
// WebSocket subscribers. It never touches the book and never blocks the
// engine — a slow or disconnected subscriber only ever costs itself
// missed updates (the same non-blocking posture engine.publish takes
// toward its own broadcast channel).
package feed

import (
	"encoding/json"
	"sync"

	"github.com/axiomex/clobengine/internal/common"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const clientSendBufferSize = 256

// wireEvent is the JSON form pushed to subscribers. Only the event kinds a
// market-data feed cares about are ever sent; order-lifecycle events
// (added/cancelled/modified) are private to the owning client and travel
// over internal/net instead.
type wireEvent struct {
	Kind     string           `json:"kind"`
	Seq      uint64           `json:"seq"`
	Trade    *common.Trade    `json:"trade,omitempty"`
	Snapshot *common.Snapshot `json:"snapshot,omitempty"`
}

// EngineSource is the subset of engine.Engine the feed depends on.
type EngineSource interface {
	Events() <-chan common.Event
	Symbol() string
}

// Hub owns the set of connected subscribers for one engine's event stream.
type Hub struct {
	symbol string
	source EngineSource

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub builds a hub that will broadcast the given engine's events once
// Run is started.
func NewHub(source EngineSource) *Hub {
	return &Hub{
		symbol:     source.Symbol(),
		source:     source,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run drains the engine's event channel and the register/unregister
// channels until the tomb starts dying.
func (h *Hub) Run(t *tomb.Tomb) error {
	log.Info().Str("symbol", h.symbol).Msg("market data hub running")
	events := h.source.Events()
	for {
		select {
		case <-t.Dying():
			h.closeAll()
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case ev := <-events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev common.Event) {
	payload, ok := encode(ev)
	if !ok {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			// Slow consumer: drop rather than block the hub loop. The
			// client stays registered and simply misses this update.
			log.Warn().Str("client", c.id).Msg("feed client send buffer full, dropping update")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// encode maps the event kinds a market-data subscriber cares about onto
// the wire form; ok is false for event kinds this feed does not forward.
func encode(ev common.Event) (wireEvent, bool) {
	switch ev.Kind {
	case common.EventTrade:
		return wireEvent{Kind: "trade", Seq: ev.Seq, Trade: ev.Trade}, true
	case common.EventBookSnapshot:
		return wireEvent{Kind: "snapshot", Seq: ev.Seq, Snapshot: ev.Snapshot}, true
	default:
		return wireEvent{}, false
	}
}
