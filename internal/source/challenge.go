package source

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrChallengeDetected is reported when a registry answers with an
// anti-bot challenge instead of results.
var ErrChallengeDetected = eris.New("captcha challenge detected")

// ChallengeType describes the kind of challenge detected.
type ChallengeType string

const (
	ChallengeNone       ChallengeType = ""
	ChallengeCloudflare ChallengeType = "cloudflare"
	ChallengeCaptcha    ChallengeType = "captcha"
)

// DetectChallenge checks visible page text for anti-bot challenge markers.
func DetectChallenge(texts []string) (bool, ChallengeType) {
	lower := strings.ToLower(strings.Join(texts, "\n"))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, ChallengeCloudflare
	}

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "i'm not a robot") ||
		strings.Contains(lower, "ben robot değilim") {
		return true, ChallengeCaptcha
	}

	return false, ChallengeNone
}
