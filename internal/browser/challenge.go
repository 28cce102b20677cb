package browser

import "strings"

// DefaultChallengeTitles are title fragments of common bot-check
// interstitials.
var DefaultChallengeTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"please verify",
	"are you a robot",
	"security check",
	"checking your browser",
	"pardon our interruption",
}

// ChallengeDetector reports whether a page title belongs to a bot-check
// interstitial rather than real content.
type ChallengeDetector struct {
	titles []string
}

// NewChallengeDetector matches titles case-insensitively against the given
// fragments, or DefaultChallengeTitles when none are given.
func NewChallengeDetector(titles ...string) *ChallengeDetector {
	if len(titles) == 0 {
		titles = DefaultChallengeTitles
	}
	d := &ChallengeDetector{}
	for _, t := range titles {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			d.titles = append(d.titles, t)
		}
	}
	return d
}

func (d *ChallengeDetector) IsChallenge(title string) bool {
	lower := strings.ToLower(title)
	for _, t := range d.titles {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
