package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

const waitPollInterval = 100 * time.Millisecond

// pollQuery runs query until it returns an element, fails, or timeout elapses.
func pollQuery(ctx context.Context, pattern string, timeout time.Duration, query func(context.Context) (Element, error)) (Element, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		el, err := query(ctx)
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ErrNotFound, "wait for %q", pattern)
		case <-ticker.C:
		}
	}
}
