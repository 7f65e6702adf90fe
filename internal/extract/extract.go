// Package extract pulls raw trademark tuples out of a loaded page. Page
// structure is unstable, so extraction is an ordered cascade of strategies:
// the first one that returns a non-empty list wins.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/model"
)

// Strategy extracts raw records from a page. An empty list with a nil error
// means the strategy found nothing; a failure is reported as *ExtractionFault.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page browser.Page) ([]model.RawRecord, error)
}

// ExtractionFault records a strategy that could not run to completion.
type ExtractionFault struct {
	Strategy string
	Err      error
}

func (f *ExtractionFault) Error() string {
	return fmt.Sprintf("extract: %s: %v", f.Strategy, f.Err)
}

func (f *ExtractionFault) Unwrap() error { return f.Err }

func fault(strategy string, err error) error {
	return &ExtractionFault{Strategy: strategy, Err: err}
}

// Cascade runs strategies in order.
type Cascade struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewCascade creates a Cascade over strategies. Nil entries are ignored.
func NewCascade(strategies ...Strategy) *Cascade {
	c := &Cascade{log: zap.L().With(zap.String("component", "extract"))}
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Strategies returns the strategy names in cascade order.
func (c *Cascade) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run returns the records of the first strategy that produced any, and that
// strategy's name. Faults are logged and treated as empty results, so Run
// never fails; ("", nil) means nothing matched.
func (c *Cascade) Run(ctx context.Context, page browser.Page) ([]model.RawRecord, string) {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return nil, ""
		}
		recs, err := s.Extract(ctx, page)
		if err != nil {
			c.log.Warn("extraction strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("url", page.URL()),
				zap.Error(err),
			)
			continue
		}
		if len(recs) > 0 {
			return recs, s.Name()
		}
		c.log.Debug("extraction strategy found nothing", zap.String("strategy", s.Name()))
	}
	c.log.Info("no records extracted", zap.String("url", page.URL()))
	return nil, ""
}
