package conversation

import (
	"strings"

	"github.com/avvvet/bookbuddy/internal/models"
)

// State of a conversation's booking
type State string

const (
	StateCollecting State = "collecting"
	StateComplete   State = "complete"
)

// StateOf derives the state from the slots
func StateOf(slots models.Slots) State {
	if slots.Complete() {
		return StateComplete
	}
	return StateCollecting
}

// TransitionInput is everything a turn knows once extraction has been
// merged and normalization attempted.
type TransitionInput struct {
	Previous    State
	Slots       models.Slots // merged slots
	ModelReply  *string      // reply suggested by the extractor
	DisplayTime string       // human rendering of Slots.DatetimeISO
	BookingURL  string
	Locale      models.Locale
}

// Outcome is the result of a transition
type Outcome struct {
	State State
	Text  string

	// Entered is true when this turn moved the conversation into complete
	Entered bool
}

// Transition decides the next state and what to say. It is pure.
func Transition(in TransitionInput) Outcome {
	next := StateOf(in.Slots)

	if next == StateComplete {
		return Outcome{
			State:   StateComplete,
			Text:    summaryMessage(in.Slots, in.DisplayTime, in.BookingURL, in.Locale),
			Entered: in.Previous != StateComplete,
		}
	}

	text := ""
	if in.ModelReply != nil {
		text = escapeHTML(strings.TrimSpace(*in.ModelReply))
	}
	if text == "" {
		text = nextQuestion(in.Slots, in.Locale)
	}

	if in.Slots.DatetimeText != nil && in.Slots.DatetimeISO == nil {
		text += clearerTimeHint(in.Locale)
	}

	return Outcome{State: StateCollecting, Text: text}
}

type command string

const (
	commandStart command = "/start"
	commandHelp  command = "/help"
	commandReset command = "/reset"
	commandBook  command = "/book"
)

var commands = []command{commandStart, commandHelp, commandReset, commandBook}

// parseCommand matches a case-insensitive command prefix
func parseCommand(text string) (command, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, c := range commands {
		if strings.HasPrefix(lower, string(c)) {
			return c, true
		}
	}
	return "", false
}
