package oracle

import (
	"encoding/json"
	"strings"

	"github.com/picnicd/picnic/internal/config"
)

// promptTemplate is the fixed extraction prompt. The configured vocabularies
// and the email's fields are substituted into the {{…}} slots before each
// call.
const promptTemplate = `You are an event extraction system for university mailing lists. Read the email below and extract a single structured event.

RULES:
1. If the email does not announce a specific event, respond with exactly DROP and nothing else.
2. Otherwise respond with ONLY a JSON object, no additional text.
3. Dates are YYYY-MM-DD. Times are HH:MM in 24-hour clock. Omit fields you cannot determine; never guess.
4. "category" must be one of: {{CATEGORIES}}
5. Food item "cuisine" must be one of: {{CUISINES}}
6. Confidence scores are between 0.0 and 1.0 and reflect how clearly the email states the value.

JSON SCHEMA:
{
  "title": "event name",
  "description": "one or two sentence summary",
  "organizer": "organizing person or group",
  "contacts": [{"name": "", "email": ""}],
  "date_start": "YYYY-MM-DD",
  "time_start": "HH:MM",
  "time_end": "HH:MM",
  "timezone": "IANA zone if stated",
  "location": "free text location",
  "urls": ["links mentioned in the email"],
  "food": [{"name": "", "quantity_hint": "", "cuisine": "", "confidence": {"cuisine": 0.0}}],
  "free": true,
  "category": "",
  "confidence": {"category": 0.0, "cuisine": 0.0, "overall": 0.0}
}

EMAIL MESSAGE ID: {{EMAIL_MESSAGE_ID}}
EMAIL DATE: {{EMAIL_DATE}}
EMAIL SUBJECT: {{EMAIL_SUBJECT}}

EMAIL BODY:
{{EMAIL_PLAIN_TEXT}}`

// buildPrompt substitutes vocabularies and email fields into the template.
func buildPrompt(cfg config.Config, body, subject, messageID, receivedAt string) string {
	categories, _ := json.Marshal(cfg.Categories)
	cuisines, _ := json.Marshal(cfg.Cuisines)

	r := strings.NewReplacer(
		"{{CATEGORIES}}", string(categories),
		"{{CUISINES}}", string(cuisines),
		"{{EMAIL_PLAIN_TEXT}}", body,
		"{{EMAIL_SUBJECT}}", subject,
		"{{EMAIL_DATE}}", receivedAt,
		"{{EMAIL_MESSAGE_ID}}", messageID,
	)
	return r.Replace(promptTemplate)
}
