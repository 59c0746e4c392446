package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/bookbuddy/internal/models"
)

var (
	ErrEmptyResponse   = errors.New("empty model response")
	ErrMalformedJSON   = errors.New("malformed JSON in model response")
	ErrUnexpectedShape = errors.New("unexpected shape of model response")
)

var extractionFields = []string{"name", "service", "datetime_text", "reply"}

// StripCodeFences removes a leading ``` or ~~~ fence (with an optional
// language tag such as "json") and the matching trailing fence.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(s, fence) {
			continue
		}
		s = strings.TrimPrefix(s, fence)
		s = strings.TrimSuffix(strings.TrimSpace(s), fence)
		s = strings.TrimSpace(s)

		// language tag, e.g. ```json
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = strings.TrimSpace(s[4:])
		}
		return s
	}

	return s
}

// DecodeExtraction parses a model response into an ExtractionResult. The
// response must be a single JSON object whose known keys hold strings or
// null. Empty strings are treated as null.
func DecodeExtraction(raw string) (models.ExtractionResult, error) {
	var result models.ExtractionResult

	content := StripCodeFences(raw)
	if content == "" {
		return result, ErrEmptyResponse
	}

	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	object, ok := decoded.(map[string]any)
	if !ok {
		return result, fmt.Errorf("%w: expected object, got %T", ErrUnexpectedShape, decoded)
	}

	values := make(map[string]*string, len(extractionFields))
	for _, field := range extractionFields {
		v, present := object[field]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return result, fmt.Errorf("%w: field %q is %T", ErrUnexpectedShape, field, v)
		}
		values[field] = models.StringPtr(strings.TrimSpace(s))
	}

	result.Name = values["name"]
	result.Service = values["service"]
	result.DatetimeText = values["datetime_text"]
	result.Reply = values["reply"]

	return result, nil
}
