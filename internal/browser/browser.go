// Package browser defines the page-fetching capability the source adapters
// drive: isolated sessions, pages that navigate and answer structural
// queries, and the process-wide Manager that owns the engine.
//
// Two engines implement it. The chrome engine drives headless Chromium via
// chromedp and runs page scripts. The static engine fetches HTML over
// net/http, queries it with goquery and emulates form submission; it cannot
// run scripts.
package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrNavigationTimeout is returned when a page does not load within its bound.
	ErrNavigationTimeout = eris.New("navigation timeout")
	// ErrNotFound is returned by WaitFor when no element matched in time.
	ErrNotFound = eris.New("element not found")
	// ErrScriptUnsupported is returned by engines that cannot evaluate scripts.
	ErrScriptUnsupported = eris.New("script evaluation not supported")
	// ErrManagerClosed is returned when a session is requested after shutdown.
	ErrManagerClosed = eris.New("browser manager closed")
	// ErrNoDocument is returned when a page is queried before navigation.
	ErrNoDocument = eris.New("no document loaded")
)

// WaitCondition selects when a navigation is considered complete.
type WaitCondition string

const (
	// WaitDOMContentLoaded returns once the document has been parsed.
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	// WaitNetworkIdle additionally waits until resource loading goes quiet.
	WaitNetworkIdle WaitCondition = "networkidle"
)

// ParseWaitCondition converts a profile value into a WaitCondition.
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch s {
	case "", "domcontentloaded", "load":
		return WaitDOMContentLoaded, nil
	case "networkidle", "network_idle":
		return WaitNetworkIdle, nil
	default:
		return "", eris.Errorf("unknown wait condition: %q (valid: domcontentloaded, networkidle)", s)
	}
}

// SessionOptions configures an isolated browsing session.
type SessionOptions struct {
	UserAgent      string
	Locale         string // e.g. "tr-TR"; also sent as Accept-Language
	ViewportWidth  int
	ViewportHeight int
	Stealth        bool // hide common automation fingerprints
}

// SessionFactory hands out isolated sessions.
type SessionFactory interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Browser is a running engine instance.
type Browser interface {
	SessionFactory
	Close() error
}

// Session is an isolated browsing context. Cookies and storage are never
// shared between sessions. Close must be called on every exit path.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Querier answers structural queries. Query returns (nil, nil) when nothing
// matches; see ParsePattern for the pattern dialect.
type Querier interface {
	Query(ctx context.Context, pattern string) (Element, error)
	QueryAll(ctx context.Context, pattern string) ([]Element, error)
}

// Page is a navigable document.
type Page interface {
	Querier
	Goto(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error
	WaitFor(ctx context.Context, pattern string, timeout time.Duration) (Element, error)
	Evaluate(ctx context.Context, script string, out any) error
	// TextNodes returns the trimmed, non-empty text nodes of the body in
	// document order, skipping script and style content.
	TextNodes(ctx context.Context) ([]string, error)
	URL() string
}

// Element is a node of a loaded page.
type Element interface {
	Querier
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
}

// first returns the first element of QueryAll, the shared Query behaviour.
func first(els []Element, err error) (Element, error) {
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}
