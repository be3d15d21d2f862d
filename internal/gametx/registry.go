package gametx

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pending is the read handle for one registered confirmation. The registry
// owns the entry until it is fulfilled; the waiter only receives.
type Pending struct {
	id    string
	done  chan Result
	timer *time.Timer
}

// CorrelationID returns the id the entry is registered under.
func (p *Pending) CorrelationID() string { return p.id }

// Done delivers the confirmation result exactly once: either the pushed
// server confirmation or the deadline's not-found failure.
func (p *Pending) Done() <-chan Result { return p.done }

// Registry is the session-wide table of pending confirmations keyed by
// correlation id. Each entry expires on its own deadline; resolution is
// exactly-once and mutually exclusive with expiry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Pending
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Pending),
		logger:  logger,
	}
}

// Register creates a pending confirmation for the correlation id. A live
// entry under the same id is replaced; its timer is cancelled.
func (r *Registry) Register(correlationID string, deadline time.Duration) *Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[correlationID]; ok {
		old.timer.Stop()
		delete(r.entries, correlationID)
		r.logger.Debug("replacing pending confirmation", zap.String("correlation_id", correlationID))
	}

	p := &Pending{
		id:   correlationID,
		done: make(chan Result, 1),
	}
	p.timer = time.AfterFunc(deadline, func() { r.expire(correlationID, p) })
	r.entries[correlationID] = p
	return p
}

// Resolve fulfills the pending confirmation and removes it. Resolving an id
// that is absent (already resolved, expired, or cleared) is a no-op.
func (r *Registry) Resolve(correlationID string, res Result) bool {
	r.mu.Lock()
	p, ok := r.entries[correlationID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	p.timer.Stop()
	delete(r.entries, correlationID)
	r.mu.Unlock()

	res.CorrelationID = correlationID
	p.done <- res
	return true
}

// Clear removes a pending confirmation without fulfilling it. Used when the
// submission channel settled the attempt and the entry must not fire later.
func (r *Registry) Clear(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.entries[correlationID]; ok {
		p.timer.Stop()
		delete(r.entries, correlationID)
	}
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) expire(correlationID string, p *Pending) {
	r.mu.Lock()
	cur, ok := r.entries[correlationID]
	if !ok || cur != p {
		// Resolved or replaced before the timer fired.
		r.mu.Unlock()
		return
	}
	delete(r.entries, correlationID)
	r.mu.Unlock()

	r.logger.Debug("pending confirmation expired", zap.String("correlation_id", correlationID))
	p.done <- Result{
		CorrelationID: correlationID,
		TimedOut:      true,
		Err:           ErrNotConfirmed,
	}
}
