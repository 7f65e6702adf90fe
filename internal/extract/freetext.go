package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/model"
)

// StrategyFreeText is the name of the text-node scan strategy.
const StrategyFreeText = "free_text"

// Defaults for the free-text scan.
const (
	DefaultFreeTextPattern = `[A-ZÇĞİÖŞÜ0-9\s]{2,30}`
	defaultFreeTextLimit   = 20
)

// DefaultDenylist holds interface labels that look like marks. Labels match
// as case-insensitive prefixes.
var DefaultDenylist = []string{"Ara", "Search", "Marka", "Sonuç"}

// FreeTextConfig tunes the text-node scan.
type FreeTextConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Pattern  string   `yaml:"pattern"`
	Denylist []string `yaml:"denylist"`
	Limit    int      `yaml:"limit"`
}

// FreeTextStrategy treats every body text node that looks like a mark name
// as a record with only a name.
type FreeTextStrategy struct {
	pattern  *regexp.Regexp
	denylist []string
	limit    int
}

// NewFreeTextStrategy compiles cfg. The pattern must match a whole text node.
func NewFreeTextStrategy(cfg FreeTextConfig) (*FreeTextStrategy, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultFreeTextPattern
	}
	re, err := regexp.Compile(`^(?:` + cfg.Pattern + `)$`)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: free text: compile pattern %q", cfg.Pattern)
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultFreeTextLimit
	}
	upper := cases.Upper(language.Und)
	denylist := make([]string, 0, len(cfg.Denylist))
	for _, label := range cfg.Denylist {
		denylist = append(denylist, upper.String(strings.TrimSpace(label)))
	}
	return &FreeTextStrategy{pattern: re, denylist: denylist, limit: cfg.Limit}, nil
}

// Name implements Strategy.
func (s *FreeTextStrategy) Name() string { return StrategyFreeText }

// Extract scans the page's text nodes in document order.
func (s *FreeTextStrategy) Extract(ctx context.Context, page browser.Page) ([]model.RawRecord, error) {
	nodes, err := page.TextNodes(ctx)
	if err != nil {
		return nil, fault(StrategyFreeText, err)
	}
	upper := cases.Upper(language.Und)
	var out []model.RawRecord
	for _, text := range nodes {
		if len(out) == s.limit {
			break
		}
		text = strings.TrimSpace(text)
		if !s.pattern.MatchString(text) || s.denied(upper.String(text)) {
			continue
		}
		out = append(out, model.RawRecord{Name: text})
	}
	return out, nil
}

// denied reports whether the upper-cased text starts with a denylist label.
func (s *FreeTextStrategy) denied(text string) bool {
	for _, label := range s.denylist {
		if strings.HasPrefix(text, label) {
			return true
		}
	}
	return false
}
