package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avvvet/bookbuddy/internal/models"
)

func completeSlots() models.Slots {
	return models.Slots{
		Name:         models.StringPtr("Alex"),
		Service:      models.StringPtr("Haircut"),
		DatetimeText: models.StringPtr("tomorrow 3pm"),
		DatetimeISO:  models.StringPtr("2026-10-15T15:00:00+08:00"),
	}
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateCollecting, StateOf(models.Slots{}))
	assert.Equal(t, StateComplete, StateOf(completeSlots()))

	slots := completeSlots()
	slots.DatetimeISO = nil
	assert.Equal(t, StateCollecting, StateOf(slots))
}

func TestTransition(t *testing.T) {
	url := "https://calendly.com/x/30min"

	tests := []struct {
		name        string
		in          TransitionInput
		wantState   State
		wantEntered bool
		contains    []string
		notContains []string
	}{
		{
			name:      "nothing known asks for name",
			in:        TransitionInput{Previous: StateCollecting, Locale: models.LocaleEnglish},
			wantState: StateCollecting,
			contains:  []string{"What’s your name?"},
		},
		{
			name: "model reply wins over fallback question",
			in: TransitionInput{
				Previous:   StateCollecting,
				Slots:      models.Slots{Name: models.StringPtr("Alex")},
				ModelReply: models.StringPtr("Thanks Alex! Which service?"),
				Locale:     models.LocaleEnglish,
			},
			wantState:   StateCollecting,
			contains:    []string{"Thanks Alex! Which service?"},
			notContains: []string{"What service would you like?"},
		},
		{
			name: "blank model reply falls back",
			in: TransitionInput{
				Slots:      models.Slots{Name: models.StringPtr("Alex")},
				ModelReply: models.StringPtr("   "),
				Locale:     models.LocaleEnglish,
			},
			wantState: StateCollecting,
			contains:  []string{"What service would you like?"},
		},
		{
			name: "missing datetime",
			in: TransitionInput{
				Slots:  models.Slots{Name: models.StringPtr("Alex"), Service: models.StringPtr("Haircut")},
				Locale: models.LocaleEnglish,
			},
			wantState: StateCollecting,
			contains:  []string{"What date/time works for you?"},
		},
		{
			name: "unparsed datetime gets hint",
			in: TransitionInput{
				Slots: models.Slots{
					Name:         models.StringPtr("Alex"),
					Service:      models.StringPtr("Haircut"),
					DatetimeText: models.StringPtr("whenever"),
				},
				Locale: models.LocaleEnglish,
			},
			wantState: StateCollecting,
			contains:  []string{"Would you like the booking link now?", "clearer time like 'tomorrow 3pm'"},
		},
		{
			name: "chinese fallback",
			in: TransitionInput{
				Slots:  models.Slots{DatetimeText: models.StringPtr("改天")},
				Locale: models.LocaleChinese,
			},
			wantState: StateCollecting,
			contains:  []string{"请问你的名字是？", "麻烦提供更明确的时间"},
		},
		{
			name: "entering complete",
			in: TransitionInput{
				Previous:    StateCollecting,
				Slots:       completeSlots(),
				ModelReply:  models.StringPtr("ignored"),
				DisplayTime: "2026-10-15 15:00 (+08)",
				BookingURL:  url,
				Locale:      models.LocaleEnglish,
			},
			wantState:   StateComplete,
			wantEntered: true,
			contains:    []string{"Great! Noted:", "• Name: Alex", "• Service: Haircut", "2026-10-15 15:00 (+08)", url},
			notContains: []string{"ignored"},
		},
		{
			name: "already complete repeats summary",
			in: TransitionInput{
				Previous:   StateComplete,
				Slots:      completeSlots(),
				BookingURL: url,
				Locale:     models.LocaleChinese,
			},
			wantState: StateComplete,
			contains:  []string{"太好了！已记录：", "• 姓名：Alex", "点击预约", url},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transition(tt.in)
			assert.Equal(t, tt.wantState, out.State)
			assert.Equal(t, tt.wantEntered, out.Entered)
			for _, s := range tt.contains {
				assert.Contains(t, out.Text, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out.Text, s)
			}
		})
	}
}

func TestTransition_EscapesSlotValues(t *testing.T) {
	slots := completeSlots()
	slots.Name = models.StringPtr("<b>A&B</b>")

	out := Transition(TransitionInput{Slots: slots, BookingURL: "https://x", Locale: models.LocaleEnglish})

	assert.Contains(t, out.Text, "&lt;b&gt;A&amp;B&lt;/b&gt;")
	assert.NotContains(t, out.Text, "<b>A&B</b>")
}

func TestTransition_EscapesModelReply(t *testing.T) {
	out := Transition(TransitionInput{
		Slots:      models.Slots{Name: models.StringPtr("Alex")},
		ModelReply: models.StringPtr("Cut & colour, or <just> a trim?"),
		Locale:     models.LocaleEnglish,
	})

	assert.Equal(t, StateCollecting, out.State)
	assert.Equal(t, "Cut &amp; colour, or &lt;just&gt; a trim?", out.Text)
}

func TestStartMessage_EscapesBusinessName(t *testing.T) {
	for _, loc := range []models.Locale{models.LocaleEnglish, models.LocaleChinese} {
		text := startMessage("Tom & Jerry <Salon>", loc)
		assert.Contains(t, text, "Tom &amp; Jerry &lt;Salon&gt;")
		assert.NotContains(t, text, "Tom & Jerry")
	}
}

func TestBookingLinkMessage_EscapesQuery(t *testing.T) {
	text := bookingLinkMessage("https://cal.example.com/x?a=1&b=2", models.LocaleEnglish)
	assert.Equal(t, "📅 <b>Book here:</b> https://cal.example.com/x?a=1&amp;b=2", text)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want command
		ok   bool
	}{
		{"/start", commandStart, true},
		{"/START now", commandStart, true},
		{"  /help", commandHelp, true},
		{"/reset", commandReset, true},
		{"/book", commandBook, true},
		{"/booking please", commandBook, true},
		{"book a haircut", "", false},
		{"hello /start", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := parseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
