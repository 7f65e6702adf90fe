package browser

import (
	"context"
	"strings"
)

// Pattern is a parsed structural selector. Supported forms:
//
//	div.result td            CSS
//	text=Marka               element with an own text node containing the label, ignoring case
//	text="Marka"             element with an own text node equal to the label
//	button:has-text("Ara")   CSS, filtered to elements whose text contains the label
//	//button[@id="go"]       XPath (page scope, chrome engine only)
type Pattern struct {
	Raw   string
	CSS   string
	XPath string
	Text  string
	// OwnText restricts Text to the element's own text nodes.
	OwnText bool
	// ExactText requires equality instead of containment.
	ExactText bool
	// IgnoreCase folds case with FoldCase before comparing.
	IgnoreCase bool
}

// Case folding shared by MatchText and the XPath translate() call, so both
// engines agree on what matches.
const (
	foldUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZÇĞİÖŞÜ"
	foldLower = "abcdefghijklmnopqrstuvwxyzçğiöşü"
)

var foldReplacer = func() *strings.Replacer {
	up, low := []rune(foldUpper), []rune(foldLower)
	pairs := make([]string, 0, 2*len(up))
	for i := range up {
		pairs = append(pairs, string(up[i]), string(low[i]))
	}
	return strings.NewReplacer(pairs...)
}()

// FoldCase lower-cases the ASCII and Turkish letters.
func FoldCase(s string) string { return foldReplacer.Replace(s) }

// ParsePattern splits raw into its CSS/XPath part and text constraint.
func ParsePattern(raw string) Pattern {
	p := Pattern{Raw: raw}
	s := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(s, "text="):
		label := strings.TrimSpace(strings.TrimPrefix(s, "text="))
		p.OwnText = true
		p.ExactText = isQuoted(label)
		p.IgnoreCase = !p.ExactText
		p.Text = collapseSpace(unquote(label))
		if p.ExactText {
			p.XPath = "//*[text()[normalize-space(.)=" + xpathLiteral(p.Text) + "]]"
		} else {
			p.XPath = "//*[text()[contains(translate(normalize-space(.), " +
				xpathLiteral(foldUpper) + ", " + xpathLiteral(foldLower) + "), " +
				xpathLiteral(FoldCase(p.Text)) + ")]]"
		}
	case strings.HasPrefix(s, "/") || strings.HasPrefix(s, "("):
		p.XPath = s
	default:
		if i := strings.Index(s, ":has-text("); i >= 0 && strings.HasSuffix(s, ")") {
			p.CSS = strings.TrimSpace(s[:i])
			p.Text = collapseSpace(unquote(s[i+len(":has-text(") : len(s)-1]))
			if p.CSS == "" {
				p.CSS = "*"
			}
		} else {
			p.CSS = s
		}
	}
	return p
}

// PlainCSS reports whether the pattern is a bare CSS selector.
func (p Pattern) PlainCSS() bool {
	return p.CSS != "" && p.XPath == "" && p.Text == ""
}

// MatchText reports whether text satisfies the pattern's text constraint.
func (p Pattern) MatchText(text string) bool {
	if p.Text == "" {
		return true
	}
	text, want := collapseSpace(text), p.Text
	if p.IgnoreCase {
		text, want = FoldCase(text), FoldCase(want)
	}
	if p.ExactText {
		return text == want
	}
	return strings.Contains(text, want)
}

// JoinPatterns combines plain CSS patterns into one selector group. It
// reports false when any pattern is XPath or carries a text constraint.
func JoinPatterns(patterns []string) (string, bool) {
	if len(patterns) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		p := ParsePattern(raw)
		if !p.PlainCSS() {
			return "", false
		}
		parts = append(parts, p.CSS)
	}
	return strings.Join(parts, ", "), true
}

// nodeKeyer is implemented by engine elements so repeated matches of one
// node can be recognized across queries.
type nodeKeyer interface {
	nodeKey() any
}

// QueryUnion returns the elements matching any of patterns. Plain CSS
// patterns run as a single selector group, so each node comes back once and
// in document order. Otherwise the patterns are queried in turn and repeated
// nodes are dropped. An error is returned only when nothing matched and at
// least one query failed.
func QueryUnion(ctx context.Context, q Querier, patterns []string) ([]Element, error) {
	if group, ok := JoinPatterns(patterns); ok {
		return q.QueryAll(ctx, group)
	}

	var (
		out     []Element
		seen    = make(map[any]bool)
		lastErr error
	)
	for _, pattern := range patterns {
		els, err := q.QueryAll(ctx, pattern)
		if err != nil {
			lastErr = err
			continue
		}
		for _, el := range els {
			if k, ok := el.(nodeKeyer); ok {
				key := k.nodeKey()
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, el)
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'')
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
