// Package aggregate fans a query out to every registry and merges the
// results.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marksearch/internal/metrics"
	"github.com/sells-group/marksearch/internal/model"
	"github.com/sells-group/marksearch/internal/source"
)

// Outcome is one adapter completion: its result, or the message of the
// panic that ended it.
type Outcome struct {
	Result model.SourceResult
	Panic  string
}

// Orchestrator runs searches against the registered sources.
type Orchestrator struct {
	reg     *source.Registry
	timeout time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each source search. Zero means no per-source bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMetrics records per-source and aggregate metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator over reg.
func New(reg *source.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg: reg,
		log: zap.L().With(zap.String("component", "aggregate")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the sources the orchestrator searches.
func (o *Orchestrator) Registry() *source.Registry { return o.reg }

// Search queries a single source. The error is non-nil only when sourceID is
// not registered; search failures are reported in the result.
func (o *Orchestrator) Search(ctx context.Context, sourceID, query string) (model.SourceResult, error) {
	s, err := o.reg.Get(sourceID)
	if err != nil {
		return model.SourceResult{}, err
	}
	out := o.run(ctx, s, query)
	if out.Panic != "" {
		out.Result.Error = out.Panic
	}
	return out.Result, nil
}

// SearchAll queries every source concurrently and merges the results in
// completion order. One source failing never cancels the others.
func (o *Orchestrator) SearchAll(ctx context.Context, query string) model.AggregateResult {
	start := time.Now()
	sources := o.reg.All()

	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(sources))
		g        errgroup.Group
	)
	for _, s := range sources {
		g.Go(func() error {
			out := o.run(ctx, s, query)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := Merge(query, outcomes)
	elapsed := time.Since(start)
	o.metrics.ObserveAggregate(res.Total, elapsed)
	o.log.Info("search complete",
		zap.String("query", query),
		zap.Int("sources", len(sources)),
		zap.Int("total", res.Total),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("elapsed", elapsed),
	)
	return res
}

// run searches s under the per-source budget and converts a panic into an
// Outcome.
func (o *Orchestrator) run(ctx context.Context, s source.Searcher, query string) (out Outcome) {
	start := time.Now()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			o.log.Error("source panicked",
				zap.String("source", s.ID()),
				zap.String("panic", msg),
				zap.Stack("stack"),
			)
			out = Outcome{
				Result: model.SourceResult{
					Query:      query,
					Source:     s.ID(),
					Label:      s.Label(),
					Trademarks: []model.Trademark{},
					DurationMs: time.Since(start).Milliseconds(),
				},
				Panic: msg,
			}
		}
		r := out.Result
		if out.Panic != "" {
			r.Error = out.Panic
		}
		o.metrics.ObserveSource(r)
	}()

	return Outcome{Result: s.Search(ctx, query)}
}

// Merge concatenates trademarks in outcome order, keeping the first record
// for each name, and collects one error string per failed source. Panics
// contribute their bare message.
func Merge(query string, outcomes []Outcome) model.AggregateResult {
	res := model.AggregateResult{Query: query, Trademarks: []model.Trademark{}}
	seen := make(map[string]bool)

	for _, out := range outcomes {
		if out.Panic != "" {
			res.Errors = append(res.Errors, out.Panic)
			continue
		}
		for _, tm := range out.Result.Trademarks {
			if seen[tm.Name] {
				continue
			}
			seen[tm.Name] = true
			res.Trademarks = append(res.Trademarks, tm)
		}
		if out.Result.Error != "" {
			res.Errors = append(res.Errors, out.Result.Source+": "+out.Result.Error)
		}
	}
	res.Total = len(res.Trademarks)
	return res
}
