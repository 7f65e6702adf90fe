package source

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

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

type stubSearcher struct{ id string }

func (s stubSearcher) ID() string    { return s.id }
func (s stubSearcher) Label() string { return strings.ToUpper(s.id) }
func (s stubSearcher) Search(_ context.Context, q string) model.SourceResult {
	return model.SourceResult{Query: q, Source: s.id}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubSearcher{"b"}))
	require.NoError(t, r.Register(stubSearcher{"a"}))
	assert.Error(t, r.Register(stubSearcher{"a"}))

	assert.Equal(t, []string{"b", "a"}, r.IDs())
	assert.Equal(t, []string{"B", "A"}, r.Labels())
	assert.Equal(t, 2, r.Len())
	require.Len(t, r.All(), 2)
	assert.Equal(t, "b", r.All()[0].ID())

	s, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s.ID())

	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestBuild(t *testing.T) {
	profiles, err := LoadProfiles("")
	require.NoError(t, err)
	sessions := browser.NewStatic(browser.StaticOptions{})

	all, err := Build(profiles, nil, sessions, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, []string{"turkpatent", "wipo", "euipo"}, all.IDs())
	assert.Equal(t, []string{"TÜRKPATENT", "WIPO", "EUIPO"}, all.Labels())

	some, err := Build(profiles, []string{"euipo", "turkpatent"}, sessions, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, []string{"turkpatent", "euipo"}, some.IDs(), "profile order is kept")

	_, err = Build(profiles, []string{"uspto"}, sessions, fastRetry())
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestNewAdapter_InvalidProfile(t *testing.T) {
	sessions := browser.NewStatic(browser.StaticOptions{})

	_, err := NewAdapter(Profile{ID: "x", EntryURL: "http://x"}, sessions)
	assert.Error(t, err, "rows are required")

	_, err = NewAdapter(Profile{
		ID:       "x",
		EntryURL: "http://x",
		Rows:     localProfile("http://x").Rows,
		FreeText: localProfile("http://x").FreeText,
	}, sessions)
	assert.NoError(t, err)
}
