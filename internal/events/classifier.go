// Package events maps free-form user text onto the closed set of event
// identifiers the prediction backend understands.
package events

import "strings"

// EventID names a predictable real-world outcome, e.g. "btc-up".
type EventID string

const (
	BTCUp        EventID = "btc-up"
	ETHUp        EventID = "eth-up"
	TrumpWin     EventID = "trump-win"
	StocksUp     EventID = "stocks-up"
	GenericEvent EventID = "generic-event"
)

// Rule maps any of its keywords onto Event. Keywords are matched as
// lower-case substrings.
type Rule struct {
	Event    EventID
	Keywords []string
}

// DefaultRules is evaluated top to bottom; earlier rules win when several match.
var DefaultRules = []Rule{
	{Event: BTCUp, Keywords: []string{"bitcoin", "btc"}},
	{Event: ETHUp, Keywords: []string{"ethereum", "eth"}},
	{Event: TrumpWin, Keywords: []string{"trump", "president"}},
	{Event: StocksUp, Keywords: []string{"stock", "market"}},
}

// Classifier holds an ordered keyword table.
type Classifier struct {
	rules []Rule
}

// Default classifies with DefaultRules.
var Default = NewClassifier(DefaultRules)

func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, Rule{Event: rule.Event, Keywords: keywords})
	}
	return &Classifier{rules: normalized}
}

// Classify returns the event of the first rule with a keyword contained in
// text, or GenericEvent. It never fails.
func (c *Classifier) Classify(text string) EventID {
	t := strings.ToLower(text)
	if t == "" {
		return GenericEvent
	}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(t, kw) {
				return rule.Event
			}
		}
	}
	return GenericEvent
}

// EventIDs lists every identifier the classifier can produce, fallback last.
func (c *Classifier) EventIDs() []EventID {
	ids := make([]EventID, 0, len(c.rules)+1)
	seen := make(map[EventID]bool)
	for _, rule := range c.rules {
		if !seen[rule.Event] {
			seen[rule.Event] = true
			ids = append(ids, rule.Event)
		}
	}
	if !seen[GenericEvent] {
		ids = append(ids, GenericEvent)
	}
	return ids
}

// Classify uses the default table.
func Classify(text string) EventID {
	return Default.Classify(text)
}
