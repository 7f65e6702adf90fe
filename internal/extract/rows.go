package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/model"
	"github.com/sells-group/marksearch/internal/normalize"
)

// StrategyRows is the name of the structured-row strategy.
const StrategyRows = "rows"

const (
	defaultRowLimit     = 30
	defaultCellSelector = "td"
)

// Field locates one value inside a row: by position among the row's cells,
// or by the first node, in document order, matching any child pattern.
type Field struct {
	Cell      *int     `yaml:"cell"`
	Selectors []string `yaml:"selectors"`
}

func (f Field) empty() bool { return f.Cell == nil && len(f.Selectors) == 0 }

// RowConfig describes a registry's result rows.
type RowConfig struct {
	Patterns      []string `yaml:"patterns"`
	Limit         int      `yaml:"limit"`
	CellSelector  string   `yaml:"cell_selector"`
	MinCells      int      `yaml:"min_cells"`
	Name          Field    `yaml:"name"`
	ApplicationNo Field    `yaml:"application_no"`
	Owner         Field    `yaml:"owner"`
	Status        Field    `yaml:"status"`
	Classes       Field    `yaml:"classes"`
}

// RowStrategy reads one record per result row.
type RowStrategy struct {
	cfg RowConfig
	log *zap.Logger
}

// NewRowStrategy validates cfg and fills in defaults.
func NewRowStrategy(cfg RowConfig) (*RowStrategy, error) {
	if len(cfg.Patterns) == 0 {
		return nil, eris.New("extract: rows: at least one row pattern is required")
	}
	if cfg.Name.empty() {
		return nil, eris.New("extract: rows: name field is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRowLimit
	}
	if cfg.CellSelector == "" {
		cfg.CellSelector = defaultCellSelector
	}
	return &RowStrategy{cfg: cfg, log: zap.L().With(zap.String("component", "extract.rows"))}, nil
}

// Name implements Strategy.
func (s *RowStrategy) Name() string { return StrategyRows }

// Patterns returns the configured row patterns.
func (s *RowStrategy) Patterns() []string { return s.cfg.Patterns }

// Extract reads every row matching any of the row patterns, in document
// order. Rows that cannot be read are skipped.
func (s *RowStrategy) Extract(ctx context.Context, page browser.Page) ([]model.RawRecord, error) {
	rows, err := browser.QueryUnion(ctx, page, s.cfg.Patterns)
	if err != nil {
		return nil, fault(StrategyRows, eris.Wrapf(err, "query rows %q", s.cfg.Patterns))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > s.cfg.Limit {
		rows = rows[:s.cfg.Limit]
	}

	out := make([]model.RawRecord, 0, len(rows))
	for i, row := range rows {
		if ctx.Err() != nil {
			break
		}
		rec, ok, err := s.readRow(ctx, row)
		if err != nil {
			s.log.Debug("skipping unreadable row", zap.Int("row", i), zap.Error(err))
			continue
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RowStrategy) needsCells() bool {
	if s.cfg.MinCells > 0 {
		return true
	}
	for _, f := range []Field{s.cfg.Name, s.cfg.ApplicationNo, s.cfg.Owner, s.cfg.Status, s.cfg.Classes} {
		if f.Cell != nil {
			return true
		}
	}
	return false
}

func (s *RowStrategy) readRow(ctx context.Context, row browser.Element) (model.RawRecord, bool, error) {
	var cells []browser.Element
	if s.needsCells() {
		var err error
		cells, err = row.QueryAll(ctx, s.cfg.CellSelector)
		if err != nil {
			return model.RawRecord{}, false, eris.Wrap(err, "query cells")
		}
		if len(cells) < s.cfg.MinCells {
			return model.RawRecord{}, false, nil
		}
	}

	read := func(f Field) (string, error) { return readField(ctx, row, cells, f) }

	name, err := read(s.cfg.Name)
	if err != nil {
		return model.RawRecord{}, false, err
	}
	if !normalize.Valid(name) {
		return model.RawRecord{}, false, nil
	}
	rec := model.RawRecord{Name: name}
	for _, f := range []struct {
		field Field
		dst   *string
	}{
		{s.cfg.ApplicationNo, &rec.ApplicationNo},
		{s.cfg.Owner, &rec.Owner},
		{s.cfg.Status, &rec.Status},
		{s.cfg.Classes, &rec.ClassText},
	} {
		if *f.dst, err = read(f.field); err != nil {
			return model.RawRecord{}, false, err
		}
	}
	return rec, true, nil
}

// readField returns "" for fields that are unset or absent from the row.
func readField(ctx context.Context, row browser.Element, cells []browser.Element, f Field) (string, error) {
	if f.Cell != nil {
		i := *f.Cell
		if i < 0 || i >= len(cells) {
			return "", nil
		}
		return cells[i].Text(ctx)
	}
	if len(f.Selectors) == 0 {
		return "", nil
	}
	els, err := browser.QueryUnion(ctx, row, f.Selectors)
	if err != nil {
		return "", eris.Wrapf(err, "query field %q", f.Selectors)
	}
	if len(els) == 0 {
		return "", nil
	}
	return els[0].Text(ctx)
}
