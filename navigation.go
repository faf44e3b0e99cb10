package goSession

import (
	"log/slog"
	"sync"
)

// NavigationBridge lets the session layer trigger "leave the authenticated area" without
// knowing the UI or router that implements it.
type NavigationBridge struct {
	mu       sync.RWMutex
	callback func()
	fallback func()
	logger   *slog.Logger
	metrics  *Metrics
}

// NewNavigationBridge returns a bridge with no callback registered. fallback runs on
// Invoke when nothing is registered; it may be nil.
func NewNavigationBridge(fallback func(), logger *slog.Logger) *NavigationBridge {
	if logger == nil {
		logger = discardLogger()
	}
	return &NavigationBridge{fallback: fallback, logger: logger}
}

// Register installs fn. The last registration wins; nil unregisters.
func (n *NavigationBridge) Register(fn func()) {
	n.mu.Lock()
	n.callback = fn
	n.mu.Unlock()
}

// Registered reports whether a callback is installed.
func (n *NavigationBridge) Registered() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.callback != nil
}

// Invoke calls the registered callback, or the fallback when none is registered. It
// never panics: a panicking callback is recovered and logged.
func (n *NavigationBridge) Invoke() {
	n.mu.RLock()
	fn := n.callback
	n.mu.RUnlock()

	if fn == nil {
		n.metrics.Inc(MetricNavigationFallback)
		if n.fallback == nil {
			n.logger.Warn("session ended with no navigation callback registered")
			return
		}
		fn = n.fallback
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("navigation callback panicked", "panic", r)
		}
	}()
	fn()
}
