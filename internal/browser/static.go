package browser

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/marksearch/internal/resilience"
)

const (
	defaultStaticUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultNavTimeout      = 30 * time.Second
	maxStaticBody          = 4 << 20
)

// StaticOptions configures the static engine.
type StaticOptions struct {
	UserAgent string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// StaticBrowser fetches pages over plain HTTP and parses them with goquery.
// Clicking a submit control re-submits the enclosing form; clicking a link
// follows it. Scripts never run.
type StaticBrowser struct {
	transport http.RoundTripper
	userAgent string
}

// NewStatic creates a StaticBrowser.
func NewStatic(opts StaticOptions) *StaticBrowser {
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 4,
		}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultStaticUserAgent
	}
	return &StaticBrowser{transport: transport, userAgent: ua}
}

// NewSession creates a session with its own cookie jar.
func (b *StaticBrowser) NewSession(_ context.Context, opts SessionOptions) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "static: cookie jar")
	}
	if opts.UserAgent == "" {
		opts.UserAgent = b.userAgent
	}
	return &staticSession{
		client: &http.Client{Transport: b.transport, Jar: jar},
		opts:   opts,
	}, nil
}

// Close releases idle connections.
func (b *StaticBrowser) Close() error {
	if t, ok := b.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

type staticSession struct {
	client *http.Client
	opts   SessionOptions
}

func (s *staticSession) NewPage(_ context.Context) (Page, error) {
	return &staticPage{session: s, navTimeout: defaultNavTimeout}, nil
}

func (s *staticSession) Close() error {
	s.client.Jar = nil
	return nil
}

type staticPage struct {
	session    *staticSession
	doc        *goquery.Document
	url        *url.URL
	navTimeout time.Duration
}

// ParseStaticPage builds a detached static page from an HTML document.
// Links and forms on it resolve against base and are fetched with a default
// client.
func ParseStaticPage(r io.Reader, base string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "static: parse document")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, eris.Wrapf(err, "static: parse base url %q", base)
	}
	jar, _ := cookiejar.New(nil)
	return &staticPage{
		session:    &staticSession{client: &http.Client{Jar: jar}, opts: SessionOptions{UserAgent: defaultStaticUserAgent}},
		doc:        doc,
		url:        u,
		navTimeout: defaultNavTimeout,
	}, nil
}

func (p *staticPage) URL() string {
	if p.url == nil {
		return ""
	}
	return p.url.String()
}

func (p *staticPage) Goto(ctx context.Context, rawURL string, _ WaitCondition, timeout time.Duration) error {
	u, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	if timeout > 0 {
		p.navTimeout = timeout
	}
	return p.load(ctx, http.MethodGet, u, nil)
}

func (p *staticPage) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "static: parse url %q", rawURL)
	}
	if p.url != nil {
		u = p.url.ResolveReference(u)
	}
	return u, nil
}

func (p *staticPage) load(ctx context.Context, method string, u *url.URL, form url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return eris.Wrap(err, "static: create request")
	}
	req.Header.Set("User-Agent", p.session.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if p.session.opts.Locale != "" {
		req.Header.Set("Accept-Language", p.session.opts.Locale)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.session.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return eris.Wrapf(ErrNavigationTimeout, "static: %s after %s", u.Redacted(), p.navTimeout)
		}
		return eris.Wrapf(err, "static: fetch %s", u.Redacted())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		err := eris.Errorf("static: %s returned status %d", u.Redacted(), resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return eris.Wrapf(err, "static: parse %s", u.Redacted())
	}
	p.doc = doc
	p.url = resp.Request.URL
	return nil
}

func (p *staticPage) root() (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, ErrNoDocument
	}
	return p.doc.Selection, nil
}

func (p *staticPage) Query(ctx context.Context, pattern string) (Element, error) {
	return first(p.QueryAll(ctx, pattern))
}

func (p *staticPage) QueryAll(_ context.Context, pattern string) ([]Element, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	return p.find(root, pattern), nil
}

// WaitFor queries once: a static document never changes on its own.
func (p *staticPage) WaitFor(ctx context.Context, pattern string, _ time.Duration) (Element, error) {
	el, err := p.Query(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, eris.Wrapf(ErrNotFound, "wait for %q", pattern)
	}
	return el, nil
}

func (p *staticPage) Evaluate(context.Context, string, any) error {
	return eris.Wrap(ErrScriptUnsupported, "static")
}

func (p *staticPage) TextNodes(_ context.Context) ([]string, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range root.Find("body").Nodes {
		collectText(n, &out)
	}
	return out, nil
}

func collectText(n *html.Node, out *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

// find evaluates pattern below root. XPath patterns never match here.
func (p *staticPage) find(root *goquery.Selection, pattern string) []Element {
	pat := ParsePattern(pattern)

	var sel *goquery.Selection
	switch {
	case pat.OwnText:
		sel = root.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			for _, t := range ownTexts(s) {
				if pat.MatchText(t) {
					return true
				}
			}
			return false
		})
	case pat.XPath != "":
		return nil
	default:
		sel = root.Find(pat.CSS)
		if pat.Text != "" {
			sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return pat.MatchText(s.Text())
			})
		}
	}

	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &staticElement{page: p, sel: s})
	})
	return out
}

// ownTexts returns the element's non-blank direct text nodes.
func ownTexts(s *goquery.Selection) []string {
	var out []string
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
				out = append(out, c.Data)
			}
		}
	}
	return out
}

type staticElement struct {
	page *staticPage
	sel  *goquery.Selection
}

func (e *staticElement) nodeKey() any { return e.sel.Get(0) }

func (e *staticElement) Query(ctx context.Context, pattern string) (Element, error) {
	return first(e.QueryAll(ctx, pattern))
}

func (e *staticElement) QueryAll(_ context.Context, pattern string) ([]Element, error) {
	return e.page.find(e.sel, pattern), nil
}

func (e *staticElement) Text(_ context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) Fill(_ context.Context, text string) error {
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText(text)
		return nil
	}
	e.sel.SetAttr("value", text)
	return nil
}

// Click follows links and submits forms; other elements ignore clicks.
func (e *staticElement) Click(ctx context.Context) error {
	switch goquery.NodeName(e.sel) {
	case "a":
		href, ok := e.sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		u, err := e.page.resolve(href)
		if err != nil {
			return err
		}
		return e.page.load(ctx, http.MethodGet, u, nil)
	case "button", "input":
		if !isSubmit(e.sel) {
			return nil
		}
		form := e.sel.Closest("form")
		if form.Length() == 0 {
			return nil
		}
		return e.page.submit(ctx, form, e.sel)
	default:
		return nil
	}
}

func isSubmit(s *goquery.Selection) bool {
	typ := strings.ToLower(s.AttrOr("type", ""))
	if goquery.NodeName(s) == "button" {
		return typ == "" || typ == "submit"
	}
	return typ == "submit" || typ == "image"
}

func (p *staticPage) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	action, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return err
	}
	values := formValues(form, submitter)

	if strings.EqualFold(form.AttrOr("method", "get"), "post") {
		return p.load(ctx, http.MethodPost, action, values)
	}
	u := *action
	u.RawQuery = values.Encode()
	return p.load(ctx, http.MethodGet, &u, nil)
}

func formValues(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, s *goquery.Selection) {
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		name := s.AttrOr("name", "")
		switch goquery.NodeName(s) {
		case "textarea":
			values.Add(name, s.Text())
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() > 0 {
				values.Add(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
			}
		default:
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); checked {
					values.Add(name, s.AttrOr("value", "on"))
				}
			case "submit", "image", "button", "reset", "file":
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		}
	})
	if name, ok := submitter.Attr("name"); ok && name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}
	return values
}
