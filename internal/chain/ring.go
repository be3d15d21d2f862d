package chain

import (
	"sync"

	"go.uber.org/zap"
)

// Ring is a rotating list of ledger RPC endpoints. The broadcast engine
// rotates to the next endpoint when a submission fails transiently.
type Ring struct {
	mu     sync.Mutex
	nodes  []string
	idx    int
	logger *zap.Logger
}

// NewRing creates a ring over the given endpoints.
func NewRing(nodes []string, logger *zap.Logger) *Ring {
	return &Ring{
		nodes:  append([]string(nil), nodes...),
		logger: logger,
	}
}

// Current returns the endpoint submissions should use.
func (r *Ring) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nodes) == 0 {
		return ""
	}
	return r.nodes[r.idx]
}

// Rotate advances to the next endpoint and returns it.
func (r *Ring) Rotate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nodes) == 0 {
		return ""
	}
	r.idx = (r.idx + 1) % len(r.nodes)
	r.logger.Info("switched ledger node", zap.String("node", r.nodes[r.idx]))
	return r.nodes[r.idx]
}

// SetNodes replaces the endpoint list, e.g. after a settings refresh. The
// cursor resets so the first published node is preferred again.
func (r *Ring) SetNodes(nodes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(nodes) == 0 {
		return
	}
	r.nodes = append([]string(nil), nodes...)
	r.idx = 0
}
