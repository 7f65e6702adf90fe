package model

// StatusUnknown is the status assigned to records whose registry reported none.
const StatusUnknown = "Unknown"

// RawRecord is the untyped field tuple pulled out of a registry page before
// normalization. Missing columns are empty strings.
type RawRecord struct {
	Name          string
	ApplicationNo string
	Owner         string
	Status        string
	ClassText     string
}

// Trademark is a normalized trademark record.
type Trademark struct {
	Name          string `json:"name"`
	ApplicationNo string `json:"application_no,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Classes       []int  `json:"classes"`
	Status        string `json:"status"`
	Source        string `json:"source"` // registry label, e.g. "TÜRKPATENT"
}

// SourceResult is the outcome of searching one registry. Error and a partial
// trademark list are not mutually exclusive.
type SourceResult struct {
	Query      string      `json:"query"`
	Source     string      `json:"source"` // registry id, e.g. "turkpatent"
	Label      string      `json:"label"`
	Trademarks []Trademark `json:"trademarks"`
	Error      string      `json:"error,omitempty"`
	Strategy   string      `json:"strategy,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Failed reports whether the registry reported a problem.
func (r *SourceResult) Failed() bool {
	return r.Error != ""
}

// AggregateResult is the merged, deduplicated result of querying every source.
type AggregateResult struct {
	Query      string      `json:"query"`
	Total      int         `json:"total"`
	Trademarks []Trademark `json:"trademarks"`
	Errors     []string    `json:"errors"`
}
