package browser

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Launcher starts an engine. The returned Browser must outlive ctx; ctx only
// bounds the start-up itself.
type Launcher func(ctx context.Context) (Browser, error)

// Manager owns the single process-wide Browser. It launches the engine on the
// first session request, hands every caller its own isolated session, and
// closes the engine exactly once at shutdown. A failed launch is retried on
// the next request.
type Manager struct {
	launch Launcher

	mu      sync.Mutex
	browser Browser
	closed  bool
}

// NewManager creates a Manager that starts engines with launch.
func NewManager(launch Launcher) *Manager {
	return &Manager{launch: launch}
}

// Browser returns the running engine, launching it if needed.
func (m *Manager) Browser(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}
	m.browser = b
	zap.L().Info("browser launched", zap.String("component", "browser.manager"))
	return b, nil
}

// NewSession opens an isolated session on the shared engine.
func (m *Manager) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	b, err := m.Browser(ctx)
	if err != nil {
		return nil, err
	}
	return b.NewSession(ctx, opts)
}

// Started reports whether the engine is currently running.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Close shuts the engine down. Subsequent calls are no-ops and later session
// requests fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	zap.L().Info("browser closed", zap.String("component", "browser.manager"))
	return eris.Wrap(err, "browser: close")
}
