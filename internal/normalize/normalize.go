// Package normalize maps raw registry field tuples onto model.Trademark.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/marksearch/internal/model"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// Name trims s, composes it to NFC and upper-cases it. Two spellings of the
// same mark always produce the same key.
func Name(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	// Casers hold state, so one is built per call.
	return cases.Upper(language.Und).String(s)
}

// Valid reports whether a raw name is long enough to become a record. The
// length is taken after Name, since NFC composition can shorten it.
func Valid(name string) bool {
	return validName(Name(name))
}

func validName(normalized string) bool {
	return utf8.RuneCountInString(normalized) > 1
}

// Classes extracts every maximal run of digits from text, in order of
// appearance, keeping duplicates. Runs that overflow int are skipped.
func Classes(text string) []int {
	runs := digitRun.FindAllString(text, -1)
	out := make([]int, 0, len(runs))
	for _, r := range runs {
		n, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Record converts raw into a Trademark labelled with the registry label.
// It returns false when the normalized name is one rune or shorter; that is the
// only rejection rule. An empty unknownStatus falls back to model.StatusUnknown.
func Record(raw model.RawRecord, label, unknownStatus string) (model.Trademark, bool) {
	name := Name(raw.Name)
	if !validName(name) {
		return model.Trademark{}, false
	}
	if unknownStatus == "" {
		unknownStatus = model.StatusUnknown
	}

	status := strings.TrimSpace(raw.Status)
	if status == "" {
		status = unknownStatus
	}

	return model.Trademark{
		Name:          name,
		ApplicationNo: strings.TrimSpace(raw.ApplicationNo),
		Owner:         strings.TrimSpace(raw.Owner),
		Classes:       Classes(raw.ClassText),
		Status:        status,
		Source:        label,
	}, true
}

// Records normalizes raws in order, dropping rejected tuples.
func Records(raws []model.RawRecord, label, unknownStatus string) []model.Trademark {
	out := make([]model.Trademark, 0, len(raws))
	for _, raw := range raws {
		if tm, ok := Record(raw, label, unknownStatus); ok {
			out = append(out, tm)
		}
	}
	return out
}
