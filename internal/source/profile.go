package source

import (
	_ "embed"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/extract"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// Settle modes.
const (
	SettlePoll  = "poll"
	SettleFixed = "fixed"
)

const (
	defaultNavTimeout   = 30 * time.Second
	defaultScopeTimeout = 5 * time.Second
)

// Profile describes how to search one registry.
type Profile struct {
	ID               string                 `yaml:"id"`
	Label            string                 `yaml:"label"`
	EntryURL         string                 `yaml:"entry_url"`
	WaitUntil        string                 `yaml:"wait_until"`
	NavTimeoutMs     int                    `yaml:"nav_timeout_ms"`
	PreSettleMs      int                    `yaml:"pre_settle_ms"`
	Session          SessionProfile         `yaml:"session"`
	Scope            ScopeProfile           `yaml:"scope"`
	Input            InputProfile           `yaml:"input"`
	SubmitSelectors  []string               `yaml:"submit_selectors"`
	Settle           SettleProfile          `yaml:"settle"`
	CaptchaSelectors []string               `yaml:"captcha_selectors"`
	Rows             extract.RowConfig      `yaml:"rows"`
	FreeText         extract.FreeTextConfig `yaml:"free_text"`
	UnknownStatus    string                 `yaml:"unknown_status"`
}

// SessionProfile is the browsing identity used for the registry.
type SessionProfile struct {
	UserAgent      string `yaml:"user_agent"`
	Locale         string `yaml:"locale"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	Stealth        bool   `yaml:"stealth"`
}

// ScopeProfile selects a search tab before filling the form.
type ScopeProfile struct {
	Selectors []string `yaml:"selectors"`
	TimeoutMs int      `yaml:"timeout_ms"`
	DelayMs   int      `yaml:"delay_ms"`
}

// InputProfile locates the query input.
type InputProfile struct {
	Selectors      []string `yaml:"selectors"`
	ScriptFallback bool     `yaml:"script_fallback"`
}

// SettleProfile bounds the wait for results after submission.
type SettleProfile struct {
	Mode string `yaml:"mode"`
	Ms   int    `yaml:"ms"`
}

type profileFile struct {
	Sources []Profile `yaml:"sources"`
}

// LoadProfiles reads profiles from path, or the built-in set when path is
// empty.
func LoadProfiles(path string) ([]Profile, error) {
	data := defaultProfiles
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: read profiles %s", path)
		}
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates a profiles document.
func ParseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "source: parse profiles")
	}
	if len(f.Sources) == 0 {
		return nil, eris.New("source: no profiles defined")
	}
	seen := make(map[string]bool, len(f.Sources))
	for i := range f.Sources {
		p := &f.Sources[i]
		if err := p.validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, eris.Errorf("source: duplicate profile id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return f.Sources, nil
}

func (p *Profile) validate() error {
	if p.ID == "" {
		return eris.New("source: profile id is required")
	}
	if p.Label == "" {
		p.Label = p.ID
	}
	if p.EntryURL == "" {
		return eris.Errorf("source: %s: entry_url is required", p.ID)
	}
	if _, err := url.Parse(strings.ReplaceAll(p.EntryURL, "{query}", "q")); err != nil {
		return eris.Wrapf(err, "source: %s: invalid entry_url", p.ID)
	}
	if _, err := browser.ParseWaitCondition(p.WaitUntil); err != nil {
		return eris.Wrapf(err, "source: %s", p.ID)
	}
	switch p.Settle.Mode {
	case "":
		p.Settle.Mode = SettlePoll
	case SettlePoll, SettleFixed:
	default:
		return eris.Errorf("source: %s: unknown settle mode %q (valid: poll, fixed)", p.ID, p.Settle.Mode)
	}
	return nil
}

// URL returns the entry URL for query. Spaces encode as %20 so the result
// is valid in a query string, a path and a fragment alike.
func (p Profile) URL(query string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return strings.ReplaceAll(p.EntryURL, "{query}", escaped)
}

func (p Profile) navTimeout() time.Duration {
	return msOr(p.NavTimeoutMs, defaultNavTimeout)
}

func (p Profile) scopeTimeout() time.Duration {
	return msOr(p.Scope.TimeoutMs, defaultScopeTimeout)
}

func (p Profile) sessionOptions() browser.SessionOptions {
	return browser.SessionOptions{
		UserAgent:      p.Session.UserAgent,
		Locale:         p.Session.Locale,
		ViewportWidth:  p.Session.ViewportWidth,
		ViewportHeight: p.Session.ViewportHeight,
		Stealth:        p.Session.Stealth,
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func msOr(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return ms(n)
}
