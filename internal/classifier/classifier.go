// Package classifier maps activity observations to productive or distraction.
package classifier

import (
	"strings"

	"github.com/verte-zerg/deepwork/internal/keywords"
	"github.com/verte-zerg/deepwork/internal/model"
)

// DefaultDistractions are the built-in distraction signatures.
var DefaultDistractions = []string{
	"youtube",
	"netflix",
	"reddit",
	"twitter",
	"x.com",
	"facebook",
	"instagram",
	"tiktok",
	"slack",
	"discord",
	"twitch",
	"whatsapp",
	"telegram",
}

// Classifier matches case-insensitive substrings against app, title and URL.
// It is immutable; build a new one to change the signature list.
type Classifier struct {
	signatures []string
}

// New returns a classifier for the given signatures.
func New(signatures []string) *Classifier {
	return &Classifier{signatures: keywords.Normalize(signatures)}
}

// Default returns a classifier with DefaultDistractions.
func Default() *Classifier {
	return New(DefaultDistractions)
}

// Signatures returns a copy of the active signature list.
func (c *Classifier) Signatures() []string {
	return append([]string(nil), c.signatures...)
}

// Classify returns the category of an observation. Unmatched input is productive.
func (c *Classifier) Classify(appName, windowTitle string) model.Category {
	return c.ClassifyEvent(model.ActivityEvent{AppName: appName, WindowTitle: windowTitle})
}

// ClassifyEvent classifies an event, including its URL when present.
func (c *Classifier) ClassifyEvent(ev model.ActivityEvent) model.Category {
	if c == nil || len(c.signatures) == 0 {
		return model.Productive
	}
	fields := []string{
		strings.ToLower(ev.AppName),
		strings.ToLower(ev.WindowTitle),
		strings.ToLower(ev.URL),
	}
	for _, sig := range c.signatures {
		for _, field := range fields {
			if field != "" && strings.Contains(field, sig) {
				return model.Distraction
			}
		}
	}
	return model.Productive
}
