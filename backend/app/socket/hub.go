package socket

import (
	"sync"

	"shortsguard/backend/global"
	"shortsguard/protocol"
)

// Hub tracks authorized agent connections for push broadcast.
type Hub struct {
	mu   sync.RWMutex
	byID map[string]*protocol.Conn
}

func NewHub() *Hub { return &Hub{byID: make(map[string]*protocol.Conn)} }

func (h *Hub) Register(agentID string, c *protocol.Conn) {
	h.mu.Lock()
	h.byID[agentID] = c
	h.mu.Unlock()
}

func (h *Hub) Unregister(agentID string, c *protocol.Conn) {
	h.mu.Lock()
	if cur, ok := h.byID[agentID]; ok && cur == c {
		delete(h.byID, agentID)
	}
	h.mu.Unlock()
}

// OnlineAgents lists registered agent ids.
func (h *Hub) OnlineAgents() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.byID))
	for id := range h.byID {
		out = append(out, id)
	}
	h.mu.RUnlock()
	return out
}

// Broadcast sends a push to every registered agent. A dead connection just
// logs; its reader will unregister it shortly.
func (h *Hub) Broadcast(m protocol.Message) {
	h.mu.RLock()
	conns := make(map[string]*protocol.Conn, len(h.byID))
	for id, c := range h.byID {
		conns[id] = c
	}
	h.mu.RUnlock()

	for id, c := range conns {
		if err := c.Push(m); err != nil {
			global.Logger.Warn().Err(err).Str("agent", id).Msg("push failed")
		}
	}
}
