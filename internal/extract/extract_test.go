package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/model"
)

func parsePage(t *testing.T, html string) browser.Page {
	t.Helper()
	p, err := browser.ParseStaticPage(strings.NewReader(html), "https://registry.test/")
	require.NoError(t, err)
	return p
}

func cell(i int) Field { return Field{Cell: &i} }

type fakeStrategy struct {
	name  string
	recs  []model.RawRecord
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(context.Context, browser.Page) ([]model.RawRecord, error) {
	f.calls++
	return f.recs, f.err
}

func TestCascade_FirstNonEmptyWins(t *testing.T) {
	page := parsePage(t, "<p></p>")
	empty := &fakeStrategy{name: "empty"}
	hit := &fakeStrategy{name: "hit", recs: []model.RawRecord{{Name: "ACME"}}}
	after := &fakeStrategy{name: "after", recs: []model.RawRecord{{Name: "ZED"}}}

	recs, name := NewCascade(empty, hit, after).Run(context.Background(), page)

	assert.Equal(t, "hit", name)
	assert.Equal(t, []model.RawRecord{{Name: "ACME"}}, recs)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 0, after.calls)
}

func TestCascade_FaultTreatedAsEmpty(t *testing.T) {
	page := parsePage(t, "<p></p>")
	broken := &fakeStrategy{name: "broken", err: fault("broken", errors.New("detached node"))}
	fallback := &fakeStrategy{name: "fallback", recs: []model.RawRecord{{Name: "ZED"}}}

	recs, name := NewCascade(broken, nil, fallback).Run(context.Background(), page)

	assert.Equal(t, "fallback", name)
	assert.Len(t, recs, 1)
}

func TestCascade_NothingMatched(t *testing.T) {
	page := parsePage(t, "<p></p>")
	c := NewCascade(&fakeStrategy{name: "a"}, &fakeStrategy{name: "b", err: errors.New("boom")})

	recs, name := c.Run(context.Background(), page)
	assert.Empty(t, recs)
	assert.Empty(t, name)
	assert.Equal(t, []string{"a", "b"}, c.Strategies())
}

func TestCascade_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeStrategy{name: "a", recs: []model.RawRecord{{Name: "ACME"}}}

	recs, _ := NewCascade(s).Run(ctx, parsePage(t, "<p></p>"))
	assert.Empty(t, recs)
	assert.Equal(t, 0, s.calls)
}

func TestExtractionFault(t *testing.T) {
	cause := errors.New("stale element")
	err := fault(StrategyRows, cause)

	var f *ExtractionFault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StrategyRows, f.Strategy)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "extract: rows: stale element", err.Error())
}
