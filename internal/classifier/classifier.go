// Package classifier decides whether user input is an Instagram URL and what
// kind of content it points at. It is pure and allocation-light so it can run
// on every keystroke.
package classifier

import (
	"strings"

	"github.com/orgball2608/insta-downloader-client/pkg/config"
)

type Category string

const (
	CategoryStory   Category = "story"
	CategoryReel    Category = "reel"
	CategoryPost    Category = "post"
	CategoryProfile Category = "profile"
	CategoryUnknown Category = "unknown"
)

var DefaultDomainTokens = []string{"instagram.com", "instagr.am"}

type Result struct {
	Valid    bool
	Category Category
}

type Classifier struct {
	tokens []string
}

func New(tokens ...string) *Classifier {
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		clean = DefaultDomainTokens
	}
	return &Classifier{tokens: clean}
}

func NewFromConfig(cfg *config.Config) *Classifier {
	return New(cfg.Media.DomainTokens...)
}

var defaultClassifier = New()

// Classify uses the default domain tokens.
func Classify(input string) Result {
	return defaultClassifier.Classify(input)
}

// Classify checks path markers in precedence order /stories/, /reel(s)/, /p/.
// Valid input without a marker is a profile; invalid input is unknown.
func (c *Classifier) Classify(input string) Result {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" || !c.hasDomain(s) {
		return Result{Valid: false, Category: CategoryUnknown}
	}

	switch {
	case strings.Contains(s, "/stories/"):
		return Result{Valid: true, Category: CategoryStory}
	case strings.Contains(s, "/reel/"), strings.Contains(s, "/reels/"):
		return Result{Valid: true, Category: CategoryReel}
	case strings.Contains(s, "/p/"):
		return Result{Valid: true, Category: CategoryPost}
	default:
		return Result{Valid: true, Category: CategoryProfile}
	}
}

func (c *Classifier) hasDomain(s string) bool {
	for _, t := range c.tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
