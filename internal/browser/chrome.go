package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// stealthScript hides the most common automation fingerprints before any
// page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = {runtime: {}};
`

const textNodesScript = `(() => {
	const out = [];
	if (!document.body) return out;
	const skip = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE']);
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	let node;
	while ((node = walker.nextNode())) {
		const parent = node.parentElement;
		if (parent && skip.has(parent.tagName)) continue;
		const text = node.textContent.trim();
		if (text) out.push(text);
	}
	return out;
})()`

const networkStateScript = `({ready: document.readyState, resources: performance.getEntriesByType('resource').length})`

// networkQuiet is how long the resource count must stay unchanged before a
// networkidle navigation completes.
const networkQuiet = 500 * time.Millisecond

// ChromeOptions configures the headless Chromium process.
type ChromeOptions struct {
	ExecPath  string
	Headless  bool
	NoSandbox bool
	UserAgent string
}

// ChromeBrowser is a running headless Chromium driven by chromedp.
type ChromeBrowser struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// LaunchChrome starts Chromium. The process lives until Close, independent
// of ctx.
func LaunchChrome(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
	)
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and must not carry a deadline,
	// or the process dies with it. ctx is honoured by abandoning the wait.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, eris.Wrap(err, "chrome: start")
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(ctx.Err(), "chrome: start")
	}

	return &ChromeBrowser{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// NewSession opens a tab in a fresh browser context, so cookies and storage
// are not shared with any other session.
func (b *ChromeBrowser) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, eris.Wrap(err, "chrome: open browser context")
	}

	s := &chromeSession{tabCtx: tabCtx, cancel: cancel}
	if err := run(ctx, tabCtx, emulate(opts)...); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "chrome: configure session")
	}
	return s, nil
}

// Close stops Chromium.
func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return eris.Wrap(err, "chrome: close")
	}
	return nil
}

func emulate(opts SessionOptions) []chromedp.Action {
	var actions []chromedp.Action
	if opts.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(opts.UserAgent)
		if opts.Locale != "" {
			ua = ua.WithAcceptLanguage(opts.Locale)
		}
		actions = append(actions, ua)
	}
	if opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(opts.Locale))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)))
	}
	if opts.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}))
	}
	return actions
}

type chromeSession struct {
	tabCtx context.Context
	cancel context.CancelFunc
	opened bool
}

// NewPage returns the session's tab. A session owns exactly one tab.
func (s *chromeSession) NewPage(_ context.Context) (Page, error) {
	if s.opened {
		return nil, eris.New("chrome: session already has a page")
	}
	s.opened = true
	return &chromePage{tabCtx: s.tabCtx}, nil
}

// Close closes the tab and disposes of its browser context.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return eris.Wrap(err, "chrome: close session")
	}
	return nil
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation. Cancelling the derived context never closes the tab.
func run(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := bridge(ctx, tabCtx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// bridge derives a context from tabCtx, which carries the chromedp target,
// that also ends with ctx and inherits its deadline.
func bridge(ctx, tabCtx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(tabCtx)
	cancelDeadline := func() {}
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancelDeadline()
		cancel()
	}
}

type chromePage struct {
	tabCtx context.Context
}

func (p *chromePage) URL() string {
	var u string
	if err := chromedp.Run(p.tabCtx, chromedp.Location(&u)); err != nil {
		return ""
	}
	return u
}

func (p *chromePage) Goto(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := run(ctx, p.tabCtx, chromedp.Navigate(url))
	if err == nil && wait == WaitNetworkIdle {
		err = p.waitNetworkIdle(ctx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return eris.Wrapf(ErrNavigationTimeout, "chrome: %s after %s", url, timeout)
		}
		return eris.Wrapf(err, "chrome: navigate %s", url)
	}
	return nil
}

// waitNetworkIdle polls the resource timeline until it stops growing for
// networkQuiet after the document reports complete.
func (p *chromePage) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	idle := newIdleTracker(networkQuiet, time.Now())
	for {
		var state networkState
		if err := run(ctx, p.tabCtx, chromedp.Evaluate(networkStateScript, &state)); err != nil {
			return err
		}
		if idle.observe(state, time.Now()) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type networkState struct {
	Ready     string `json:"ready"`
	Resources int    `json:"resources"`
}

// idleTracker decides when a page's network activity has gone quiet.
type idleTracker struct {
	quiet      time.Duration
	last       int
	quietSince time.Time
}

func newIdleTracker(quiet time.Duration, now time.Time) *idleTracker {
	return &idleTracker{quiet: quiet, last: -1, quietSince: now}
}

// observe records a sample and reports whether the page is idle: loaded,
// with no new resources for the quiet period.
func (t *idleTracker) observe(s networkState, now time.Time) bool {
	if s.Resources != t.last {
		t.last = s.Resources
		t.quietSince = now
		return false
	}
	return s.Ready == "complete" && now.Sub(t.quietSince) >= t.quiet
}

func (p *chromePage) Query(ctx context.Context, pattern string) (Element, error) {
	return first(p.QueryAll(ctx, pattern))
}

func (p *chromePage) QueryAll(ctx context.Context, pattern string) ([]Element, error) {
	return p.queryAll(ctx, nil, pattern)
}

// chromeQuery is how a pattern runs against the DOM.
type chromeQuery struct {
	Selector string
	// XPath selects chromedp.BySearch instead of querySelectorAll.
	XPath bool
	// FilterText applies the pattern's text constraint to each node's
	// innerText after the query.
	FilterText bool
}

// planQuery maps a pattern onto a DOM query. XPath patterns, including
// text=, only run at page scope.
func planQuery(pat Pattern, scoped bool) (chromeQuery, error) {
	if pat.XPath != "" {
		if scoped {
			return chromeQuery{}, eris.Errorf("chrome: pattern %q cannot be scoped to an element", pat.Raw)
		}
		// text= is enforced by the XPath expression itself.
		return chromeQuery{Selector: pat.XPath, XPath: true}, nil
	}
	return chromeQuery{Selector: pat.CSS, FilterText: pat.Text != ""}, nil
}

func (p *chromePage) queryAll(ctx context.Context, from *cdp.Node, pattern string) ([]Element, error) {
	pat := ParsePattern(pattern)
	plan, err := planQuery(pat, from != nil)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	var action chromedp.Action
	if plan.XPath {
		action = chromedp.Nodes(plan.Selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0))
	} else {
		opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
		if from != nil {
			opts = append(opts, chromedp.FromNode(from))
		}
		action = chromedp.Nodes(plan.Selector, &nodes, opts...)
	}
	if err := run(ctx, p.tabCtx, action); err != nil {
		return nil, eris.Wrapf(err, "chrome: query %q", pattern)
	}

	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		el := &chromeElement{page: p, node: n}
		if plan.FilterText {
			text, err := el.Text(ctx)
			if err != nil {
				return nil, err
			}
			if !pat.MatchText(text) {
				continue
			}
		}
		out = append(out, el)
	}
	return out, nil
}

func (p *chromePage) WaitFor(ctx context.Context, pattern string, timeout time.Duration) (Element, error) {
	return pollQuery(ctx, pattern, timeout, func(ctx context.Context) (Element, error) {
		return p.Query(ctx, pattern)
	})
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	if err := run(ctx, p.tabCtx, chromedp.Evaluate(script, out)); err != nil {
		return eris.Wrap(err, "chrome: evaluate")
	}
	return nil
}

func (p *chromePage) TextNodes(ctx context.Context) ([]string, error) {
	var out []string
	if err := p.Evaluate(ctx, textNodesScript, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func (e *chromeElement) nodeKey() any { return e.node.NodeID }

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Query(ctx context.Context, pattern string) (Element, error) {
	return first(e.QueryAll(ctx, pattern))
}

func (e *chromeElement) QueryAll(ctx context.Context, pattern string) ([]Element, error) {
	return e.page.queryAll(ctx, e.node, pattern)
}

// Text returns the element's rendered text (innerText).
func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := run(ctx, e.page.tabCtx, chromedp.JavascriptAttribute(e.ids(), "innerText", &text, chromedp.ByNodeID)); err != nil {
		return "", eris.Wrap(err, "chrome: read text")
	}
	return strings.TrimRight(text, "\n"), nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	if err := run(ctx, e.page.tabCtx, chromedp.Click(e.ids(), chromedp.ByNodeID)); err != nil {
		return eris.Wrap(err, "chrome: click")
	}
	return nil
}

// Fill replaces the element's value by typing, so input listeners fire.
func (e *chromeElement) Fill(ctx context.Context, text string) error {
	err := run(ctx, e.page.tabCtx,
		chromedp.SetValue(e.ids(), "", chromedp.ByNodeID),
		chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID),
	)
	if err != nil {
		return eris.Wrap(err, "chrome: fill")
	}
	return nil
}
