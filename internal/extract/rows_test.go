package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marksearch/internal/model"
)

const resultTable = `<table><tbody>
<tr><td> kuzu </td><td>2023/001</td><td>Acme Ltd</td><td>Tescilli</td><td>9, 35</td></tr>
<tr><td>x</td><td>2023/002</td><td>Nobody</td><td></td><td>1</td></tr>
<tr><td>short</td><td>only two</td></tr>
<tr><td>KUZU GIDA</td><td>2023/003</td><td>Kuzu AŞ</td></tr>
</tbody></table>`

func positional() RowConfig {
	return RowConfig{
		Patterns:      []string{".marka-sonuc", "table tbody tr"},
		MinCells:      3,
		Name:          cell(0),
		ApplicationNo: cell(1),
		Owner:         cell(2),
		Status:        cell(3),
		Classes:       cell(4),
	}
}

func TestRowStrategy_Positional(t *testing.T) {
	s, err := NewRowStrategy(positional())
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t, resultTable))
	require.NoError(t, err)

	assert.Equal(t, []model.RawRecord{
		{Name: " kuzu ", ApplicationNo: "2023/001", Owner: "Acme Ltd", Status: "Tescilli", ClassText: "9, 35"},
		{Name: "KUZU GIDA", ApplicationNo: "2023/003", Owner: "Kuzu AŞ"},
	}, recs)
}

func TestRowStrategy_BySelector(t *testing.T) {
	cfg := RowConfig{
		Patterns: []string{".result-row", ".brand-result"},
		Name:     Field{Selectors: []string{".brand-name", "td:first-child", ".name"}},
		Owner:    Field{Selectors: []string{".holder"}},
	}
	s, err := NewRowStrategy(cfg)
	require.NoError(t, err)

	page := parsePage(t, `
<div class="brand-result"><span class="name">Zeta</span><span class="holder">Z Corp</span></div>
<div class="brand-result"><span class="brand-name">Alpha</span><span class="name">ignored</span></div>
<div class="brand-result"><span class="other">no name</span></div>`)

	recs, err := s.Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{
		{Name: "Zeta", Owner: "Z Corp"},
		{Name: "Alpha"},
	}, recs)
}

func TestRowStrategy_UnionOfPatterns(t *testing.T) {
	cfg := RowConfig{
		Patterns: []string{".result-row", ".brand-result", "table tr"},
		Limit:    20,
		Name:     Field{Selectors: []string{".brand-name", "td:first-child", ".name"}},
	}
	s, err := NewRowStrategy(cfg)
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t, `
<div class="result-row"><span class="brand-name">ACME</span></div>
<table><tr><td>KUZU</td></tr><tr><td>ZED</td></tr></table>`))
	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{{Name: "ACME"}, {Name: "KUZU"}, {Name: "ZED"}}, recs)
}

func TestRowStrategy_UnionLimitAppliesAfterMerge(t *testing.T) {
	s, err := NewRowStrategy(RowConfig{
		Patterns: []string{"li.secondary", "li.primary"},
		Limit:    2,
		Name:     Field{Selectors: []string{"b"}},
	})
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t, `<ul>
<li class="primary"><b>FIRST</b></li>
<li class="secondary primary"><b>SECOND</b></li>
<li class="secondary"><b>THIRD</b></li></ul>`))
	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{{Name: "FIRST"}, {Name: "SECOND"}}, recs)
}

func TestRowStrategy_FieldSelectorsInDocumentOrder(t *testing.T) {
	s, err := NewRowStrategy(RowConfig{
		Patterns: []string{"tr"},
		Name:     Field{Selectors: []string{".brand-name", "td:first-child"}},
	})
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t, `<table>
<tr><td>LEFT</td><td class="brand-name">RIGHT</td></tr></table>`))
	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{{Name: "LEFT"}}, recs)
}

func TestRowStrategy_RejectsNamesShortAfterComposition(t *testing.T) {
	s, err := NewRowStrategy(RowConfig{Patterns: []string{"tr"}, Name: cell(0)})
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t,
		"<table><tr><td>e\u0301</td></tr><tr><td>KUZU</td></tr></table>"))
	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{{Name: "KUZU"}}, recs)
}

func TestRowStrategy_Limit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table><tbody>")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "<tr><td>MARK %d</td></tr>", i)
	}
	b.WriteString("</tbody></table>")

	s, err := NewRowStrategy(RowConfig{Patterns: []string{"tr"}, Name: cell(0)})
	require.NoError(t, err)
	recs, err := s.Extract(context.Background(), parsePage(t, b.String()))
	require.NoError(t, err)
	require.Len(t, recs, defaultRowLimit)
	assert.Equal(t, "MARK 29", recs[29].Name)

	s, err = NewRowStrategy(RowConfig{Patterns: []string{"tr"}, Name: cell(0), Limit: 5})
	require.NoError(t, err)
	recs, err = s.Extract(context.Background(), parsePage(t, b.String()))
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestRowStrategy_NoRows(t *testing.T) {
	s, err := NewRowStrategy(positional())
	require.NoError(t, err)

	recs, err := s.Extract(context.Background(), parsePage(t, "<p>Sonuç bulunamadı</p>"))
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRowStrategy_QueryFailureIsFault(t *testing.T) {
	s, err := NewRowStrategy(positional())
	require.NoError(t, err)

	page := newStaticBlankPage(t)
	_, err = s.Extract(context.Background(), page)
	var f *ExtractionFault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StrategyRows, f.Strategy)
}

func TestNewRowStrategy_Validation(t *testing.T) {
	_, err := NewRowStrategy(RowConfig{Name: cell(0)})
	assert.Error(t, err)

	_, err = NewRowStrategy(RowConfig{Patterns: []string{"tr"}})
	assert.Error(t, err)
}
