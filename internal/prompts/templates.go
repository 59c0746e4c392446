package prompts

import (
	"fmt"
	"strings"

	"github.com/avvvet/bookbuddy/internal/models"
)

const SystemPrompt = `You are a concise AI receptionist for %s.
Detect the user's language (English or Chinese) from their message; respond in that language.
Extract fields. OUTPUT ONLY JSON:

{
  "name": <string or null>,
  "service": <string or null>,
  "datetime_text": <string or null>,
  "reply": <1-3 sentence reply that asks only for missing info; if complete, a short confirmation>
}

Rules:
- If a field is not clearly provided, leave it null.
- Keep the user's own phrasing in "datetime_text" so it can be parsed later.
- Keep responses short, friendly, and professional.
- Do NOT include code fences or extra commentary. JSON only.`

// ResponderPrompt is the single-turn prompt used by stateless channels
const ResponderPrompt = `You are a friendly AI receptionist for %s.
Reply in the same language the user wrote in.
Answer briefly (1-3 sentences) and guide the user towards booking an appointment.
Do not invent prices, availability or opening hours.
Plain text only, no markdown.`

const unknown = "None"

// BuildSystemPrompt renders the extraction instruction for a business
func BuildSystemPrompt(businessName string) string {
	return fmt.Sprintf(SystemPrompt, businessName)
}

// BuildResponderPrompt renders the stateless reply instruction
func BuildResponderPrompt(businessName string) string {
	return fmt.Sprintf(ResponderPrompt, businessName)
}

// BuildUserTurn summarises what is already known and appends the new text
func BuildUserTurn(slots models.Slots, userText string) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Known so far -> name: %s, service: %s, datetime_text: %s.\n",
		orUnknown(slots.Name),
		orUnknown(slots.Service),
		orUnknown(slots.DatetimeText)))
	builder.WriteString(fmt.Sprintf("User said -> %s", userText))

	return builder.String()
}

func orUnknown(s *string) string {
	if s == nil {
		return unknown
	}
	return *s
}
