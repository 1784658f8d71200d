package rate

import (
	"context"
	"sync"

	xrate "golang.org/x/time/rate"
)

// Config defines outbound rate limiting parameters for one Beeswax login.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

// Enabled reports whether cfg throttles anything. A non-positive rate means no limit.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// New creates a token bucket limiter with a full bucket. Burst is at least 1;
// a disabled config yields a limiter that never blocks.
func New(cfg Config) *xrate.Limiter {
	burst := max(cfg.Burst, 1)
	if !cfg.Enabled() {
		return xrate.NewLimiter(xrate.Inf, burst)
	}
	return xrate.NewLimiter(xrate.Limit(cfg.RequestsPerSecond), burst)
}

// Manager holds one limiter per key (one per Beeswax account in practice).
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*xrate.Limiter
	defaults Config
}

// NewManager returns a Manager that creates limiters from defaults on demand.
func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*xrate.Limiter),
		defaults: defaults,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (m *Manager) GetLimiter(key string) *xrate.Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim := New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait blocks until key may send, or ctx ends. It fails early when the
// wait would outlast ctx's deadline.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
