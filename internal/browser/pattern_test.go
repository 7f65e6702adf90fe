package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Pattern
	}{
		{
			raw:  "table tbody tr",
			want: Pattern{Raw: "table tbody tr", CSS: "table tbody tr"},
		},
		{
			raw: "text=Marka",
			want: Pattern{
				Raw: "text=Marka", Text: "Marka", OwnText: true, IgnoreCase: true,
				XPath: `//*[text()[contains(translate(normalize-space(.), "ABCDEFGHIJKLMNOPQRSTUVWXYZÇĞİÖŞÜ", "abcdefghijklmnopqrstuvwxyzçğiöşü"), "marka")]]`,
			},
		},
		{
			raw:  `text="Marka"`,
			want: Pattern{Raw: `text="Marka"`, Text: "Marka", OwnText: true, ExactText: true, XPath: `//*[text()[normalize-space(.)="Marka"]]`},
		},
		{
			raw:  `button:has-text("Ara")`,
			want: Pattern{Raw: `button:has-text("Ara")`, CSS: "button", Text: "Ara"},
		},
		{
			raw:  `:has-text('Search')`,
			want: Pattern{Raw: `:has-text('Search')`, CSS: "*", Text: "Search"},
		},
		{
			raw:  `//button[@id="go"]`,
			want: Pattern{Raw: `//button[@id="go"]`, XPath: `//button[@id="go"]`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParsePattern(tt.raw))
		})
	}
}

func TestPattern_MatchText(t *testing.T) {
	t.Parallel()

	loose := ParsePattern("text=Marka")
	assert.True(t, loose.MatchText("  Marka\n"))
	assert.True(t, loose.MatchText("Marka Araştırma"))
	assert.True(t, loose.MatchText("MARKA"))
	assert.False(t, loose.MatchText("Patent"))

	exact := ParsePattern(`text="Marka"`)
	assert.True(t, exact.MatchText("  Marka\n"))
	assert.False(t, exact.MatchText("Marka Ara"))
	assert.False(t, exact.MatchText("MARKA"))

	contains := ParsePattern(`button:has-text("Ara")`)
	assert.True(t, contains.MatchText("Hemen  Ara"))
	assert.False(t, contains.MatchText("Search"))

	assert.True(t, ParsePattern("td").MatchText("anything"))
}

func TestFoldCase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "marka araştirma", FoldCase("MARKA ARAŞTIRMA"))
	assert.Equal(t, "çiçek", FoldCase("ÇİÇEK"))
	assert.Equal(t, len([]rune(foldUpper)), len([]rune(foldLower)))
}

func TestJoinPatterns(t *testing.T) {
	t.Parallel()

	group, ok := JoinPatterns([]string{"table tbody tr", " .result-item", ".marka-sonuc"})
	assert.True(t, ok)
	assert.Equal(t, "table tbody tr, .result-item, .marka-sonuc", group)

	_, ok = JoinPatterns([]string{".row", "text=Marka"})
	assert.False(t, ok)
	_, ok = JoinPatterns([]string{`li:has-text("x")`})
	assert.False(t, ok)
	_, ok = JoinPatterns([]string{"//tr"})
	assert.False(t, ok)
	_, ok = JoinPatterns(nil)
	assert.False(t, ok)
}

func TestXPathLiteral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"plain"`, xpathLiteral("plain"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "quoted", '"', "")`, xpathLiteral(`it's "quoted"`))
}

func TestParseWaitCondition(t *testing.T) {
	t.Parallel()

	w, err := ParseWaitCondition("")
	assert.NoError(t, err)
	assert.Equal(t, WaitDOMContentLoaded, w)

	w, err = ParseWaitCondition("networkidle")
	assert.NoError(t, err)
	assert.Equal(t, WaitNetworkIdle, w)

	_, err = ParseWaitCondition("eventually")
	assert.Error(t, err)
}
