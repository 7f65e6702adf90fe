// Package source drives registry searches. One generic Adapter is configured
// per registry by a Profile; the Registry holds the enabled adapters.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/extract"
	"github.com/sells-group/marksearch/internal/model"
	"github.com/sells-group/marksearch/internal/normalize"
	"github.com/sells-group/marksearch/internal/resilience"
)

const (
	settleInitialBackoff = 250 * time.Millisecond
	settleMaxBackoff     = time.Second
)

// fillScript assigns %s (a JSON string) to the first text input and fires the
// events frameworks listen for.
const fillScript = `(() => {
  const q = %s;
  for (const i of document.querySelectorAll('input')) {
    if (i.type === 'text' || (i.name || '').includes('marka')) {
      i.value = q;
      i.dispatchEvent(new Event('input', {bubbles: true}));
      i.dispatchEvent(new Event('change', {bubbles: true}));
      return true;
    }
  }
  return false;
})()`

// Searcher searches one registry. Search never fails: problems are reported
// in SourceResult.Error alongside whatever was collected.
type Searcher interface {
	ID() string
	Label() string
	Search(ctx context.Context, query string) model.SourceResult
}

// Adapter runs a Profile's search flow on a fresh browser session.
type Adapter struct {
	profile  Profile
	sessions browser.SessionFactory
	wait     browser.WaitCondition
	rows     *extract.RowStrategy
	cascade  *extract.Cascade
	retry    resilience.RetryConfig
	log      *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRetry sets the navigation retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Adapter) { a.retry = cfg }
}

// NewAdapter builds the adapter for p. Sessions come from sessions, normally
// the process-wide browser.Manager.
func NewAdapter(p Profile, sessions browser.SessionFactory, opts ...Option) (*Adapter, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	wait, err := browser.ParseWaitCondition(p.WaitUntil)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s", p.ID)
	}
	rows, err := extract.NewRowStrategy(p.Rows)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s", p.ID)
	}
	strategies := []extract.Strategy{rows}
	if p.FreeText.Enabled {
		ft, err := extract.NewFreeTextStrategy(p.FreeText)
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s", p.ID)
		}
		strategies = append(strategies, ft)
	}

	a := &Adapter{
		profile:  p,
		sessions: sessions,
		wait:     wait,
		rows:     rows,
		cascade:  extract.NewCascade(strategies...),
		retry:    resilience.DefaultRetryConfig(),
		log:      zap.L().With(zap.String("component", "source"), zap.String("source", p.ID)),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// ID returns the registry id, e.g. "turkpatent".
func (a *Adapter) ID() string { return a.profile.ID }

// Label returns the display label stamped on every record.
func (a *Adapter) Label() string { return a.profile.Label }

// Profile returns the adapter's profile.
func (a *Adapter) Profile() Profile { return a.profile }

// Search runs the registry's search flow for query.
func (a *Adapter) Search(ctx context.Context, query string) model.SourceResult {
	start := time.Now()
	log := a.log.With(zap.String("query", query))

	raws, strategy, err := a.run(ctx, query, log)

	res := model.SourceResult{
		Query:      query,
		Source:     a.profile.ID,
		Label:      a.profile.Label,
		Trademarks: normalize.Records(raws, a.profile.Label, a.profile.UnknownStatus),
		Strategy:   strategy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
		log.Warn("search failed", zap.Error(err), zap.Int("trademarks", len(res.Trademarks)))
		return res
	}
	log.Info("search complete",
		zap.Int("trademarks", len(res.Trademarks)),
		zap.String("strategy", strategy),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res
}

func (a *Adapter) run(ctx context.Context, query string, log *zap.Logger) ([]model.RawRecord, string, error) {
	sess, err := a.sessions.NewSession(ctx, a.profile.sessionOptions())
	if err != nil {
		return nil, "", eris.Wrap(err, "acquire session")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debug("session close failed", zap.Error(cerr))
		}
	}()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, "", eris.Wrap(err, "open page")
	}

	target := a.profile.URL(query)
	retry := a.retry
	retry.ShouldRetry = retryNavigation
	retry.OnRetry = resilience.RetryLogger(a.profile.ID, "navigate")
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		return page.Goto(ctx, target, a.wait, a.profile.navTimeout())
	})
	if err != nil {
		return nil, "", err
	}

	if err := sleep(ctx, ms(a.profile.PreSettleMs)); err != nil {
		return nil, "", interrupted(err)
	}

	a.selectScope(ctx, page, log)
	if len(a.profile.Input.Selectors) > 0 || a.profile.Input.ScriptFallback {
		a.fill(ctx, page, query, log)
	}
	a.submit(ctx, page, log)

	if err := a.settle(ctx, page); err != nil {
		return nil, "", interrupted(err)
	}

	if challenged, kind := a.challenged(ctx, page); challenged {
		log.Warn("challenge page detected", zap.String("challenge", string(kind)))
		return nil, "", ErrChallengeDetected
	}

	raws, strategy := a.cascade.Run(ctx, page)
	if err := ctx.Err(); err != nil {
		return raws, strategy, interrupted(err)
	}
	return raws, strategy, nil
}

// retryNavigation retries transient network failures but never a navigation
// that ran out of time: the registry is up but slow.
func retryNavigation(err error) bool {
	if errors.Is(err, browser.ErrNavigationTimeout) {
		return false
	}
	return resilience.IsTransient(err)
}

func interrupted(err error) error {
	return eris.Wrap(err, "search interrupted")
}

func (a *Adapter) selectScope(ctx context.Context, page browser.Page, log *zap.Logger) {
	sc := a.profile.Scope
	if len(sc.Selectors) == 0 {
		return
	}
	el, err := page.WaitFor(ctx, sc.Selectors[0], a.profile.scopeTimeout())
	for _, pattern := range sc.Selectors[1:] {
		if el != nil {
			break
		}
		el, err = page.Query(ctx, pattern)
	}
	if el == nil {
		log.Debug("scope control not found", zap.Error(err))
		return
	}
	if err := el.Click(ctx); err != nil {
		log.Debug("scope click failed", zap.Error(err))
		return
	}
	_ = sleep(ctx, ms(sc.DelayMs))
}

func (a *Adapter) fill(ctx context.Context, page browser.Page, query string, log *zap.Logger) {
	for _, pattern := range a.profile.Input.Selectors {
		el, err := page.Query(ctx, pattern)
		if err != nil || el == nil {
			continue
		}
		if err := el.Fill(ctx, query); err != nil {
			log.Debug("fill failed", zap.String("selector", pattern), zap.Error(err))
			continue
		}
		return
	}
	if !a.profile.Input.ScriptFallback {
		log.Debug("no query input found")
		return
	}

	q, err := json.Marshal(query)
	if err != nil {
		log.Warn("encode query for script fill", zap.Error(err))
		return
	}
	var filled bool
	if err := page.Evaluate(ctx, fmt.Sprintf(fillScript, q), &filled); err != nil {
		log.Warn("script fill failed", zap.Error(err))
		return
	}
	if !filled {
		log.Debug("script fill found no input")
	}
}

func (a *Adapter) submit(ctx context.Context, page browser.Page, log *zap.Logger) {
	for _, pattern := range a.profile.SubmitSelectors {
		el, err := page.Query(ctx, pattern)
		if err != nil || el == nil {
			continue
		}
		if err := el.Click(ctx); err != nil {
			log.Debug("submit click failed", zap.String("selector", pattern), zap.Error(err))
			continue
		}
		return
	}
	if len(a.profile.SubmitSelectors) > 0 {
		log.Debug("no submit control found")
	}
}

// settle waits for results. Poll mode returns as soon as any row pattern
// matches; both modes give up after settle.ms.
func (a *Adapter) settle(ctx context.Context, page browser.Page) error {
	limit := ms(a.profile.Settle.Ms)
	if limit <= 0 {
		return ctx.Err()
	}
	if a.profile.Settle.Mode == SettleFixed {
		return sleep(ctx, limit)
	}

	deadline := time.Now().Add(limit)
	backoff := settleInitialBackoff
	for {
		if a.rowsPresent(ctx, page) {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ctx.Err()
		}
		if err := sleep(ctx, min(backoff, remaining)); err != nil {
			return err
		}
		backoff = min(backoff*2, settleMaxBackoff)
	}
}

func (a *Adapter) rowsPresent(ctx context.Context, page browser.Page) bool {
	els, err := browser.QueryUnion(ctx, page, a.rows.Patterns())
	return err == nil && len(els) > 0
}

func (a *Adapter) challenged(ctx context.Context, page browser.Page) (bool, ChallengeType) {
	if len(a.profile.CaptchaSelectors) == 0 {
		return false, ChallengeNone
	}
	for _, pattern := range a.profile.CaptchaSelectors {
		if el, err := page.Query(ctx, pattern); err == nil && el != nil {
			return true, ChallengeCaptcha
		}
	}
	// Result pages routinely mention reCAPTCHA in footers, so page text
	// only counts when it is an interstitial.
	texts, err := page.TextNodes(ctx)
	if err != nil {
		return false, ChallengeNone
	}
	if found, kind := DetectChallenge(texts); found && kind == ChallengeCloudflare {
		return true, kind
	}
	return false, ChallengeNone
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
