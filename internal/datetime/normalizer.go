package datetime

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/avvvet/bookbuddy/internal/models"
)

// DefaultTimezone is used when no reference timezone is configured
const DefaultTimezone = "Asia/Singapore"

// DisplayLayout is the human-friendly rendering used in confirmations
const DisplayLayout = "2006-01-02 15:04 (MST)"

var (
	weekdayPattern = regexp.MustCompile(`(?i)\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(day|nesday|sday|urday)?\b|周[一二三四五六日天]|星期[一二三四五六日天]|礼拜[一二三四五六日天]`)
	yearPattern    = regexp.MustCompile(`\b\d{4}\b|\d{4}年|明年|去年|今年|next year|last year|this year`)
	pastPattern    = regexp.MustCompile(`(?i)\b(yesterday|last|ago|past|previous)\b|昨|前天|上周|上个|上星期|之前|以前`)
)

// Normalizer turns free-text date/time phrases into timestamps in a fixed
// reference timezone.
type Normalizer struct {
	location *time.Location
	now      func() time.Time
	parsers  map[models.Locale]*when.Parser
}

// Option customises a Normalizer
type Option func(*Normalizer)

// WithClock overrides the reference clock
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer builds a normalizer for the named IANA timezone
func NewNormalizer(timezone string, opts ...Option) (*Normalizer, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	enParser := when.New(nil)
	enParser.Add(en.All...)
	enParser.Add(common.All...)

	zhParser := when.New(nil)
	zhParser.Add(chineseRules()...)
	zhParser.Add(common.All...)

	n := &Normalizer{
		location: loc,
		now:      time.Now,
		parsers: map[models.Locale]*when.Parser{
			models.LocaleEnglish: enParser,
			models.LocaleChinese: zhParser,
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Location returns the reference timezone
func (n *Normalizer) Location() *time.Location {
	return n.location
}

// Normalize parses text in the language of loc. It returns the original
// text with the resolved time, the original text with nil when the phrase
// cannot be resolved, and ("", nil) for empty input. A panicking grammar
// rule counts as unresolved.
func (n *Normalizer) Normalize(text string, loc models.Locale) (cleaned string, resolved *time.Time) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	defer func() {
		if recover() != nil {
			cleaned, resolved = text, nil
		}
	}()

	parser, ok := n.parsers[loc]
	if !ok {
		parser = n.parsers[models.LocaleEnglish]
	}

	base := n.now().In(n.location)
	res, err := parser.Parse(text, base)
	if err != nil || res == nil {
		return text, nil
	}

	t := preferFuture(res.Time.In(n.location), base, res.Text)
	return text, &t
}

// preferFuture moves a resolved instant that landed in the past to its next
// occurrence, unless the phrase explicitly points backwards or names a year.
func preferFuture(t, base time.Time, matched string) time.Time {
	if !t.Before(base) || pastPattern.MatchString(matched) || yearPattern.MatchString(matched) {
		return t
	}
	switch {
	case weekdayPattern.MatchString(matched):
		for t.Before(base) {
			t = t.AddDate(0, 0, 7)
		}
	case sameDay(t, base):
		t = t.AddDate(0, 0, 1)
	default:
		for t.Before(base) {
			t = t.AddDate(1, 0, 0)
		}
	}
	return t
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatISO renders t as RFC 3339 with its UTC offset
func FormatISO(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Display re-renders a stored ISO timestamp for humans in the reference
// timezone. Unparseable input is returned unchanged.
func (n *Normalizer) Display(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.In(n.location).Format(DisplayLayout)
}
