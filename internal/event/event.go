// Package event defines the structured event record extracted from mailing
// list emails, the untrusted raw draft the oracle returns, and the validator
// that promotes drafts to events.
package event

// Contact is a name/email pair attached to an event. Either field may be
// empty.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// FoodItem is one announced food item. Name is always non-empty after
// validation; Cuisine, when set, is drawn from the configured vocabulary.
type FoodItem struct {
	Name         string `json:"name"`
	QuantityHint string `json:"quantity_hint,omitempty"`
	Cuisine      string `json:"cuisine,omitempty"`

	// CuisineConfidence is the oracle's score for the cuisine tag, kept so
	// the confidence filter can decide per item. Nil when unreported.
	CuisineConfidence *float64 `json:"cuisine_confidence,omitempty"`
}

// Confidence carries up to three independent scores in [0,1]. Nil pointers
// mean the oracle did not report that score.
type Confidence struct {
	Category *float64 `json:"category,omitempty"`
	Cuisine  *float64 `json:"cuisine,omitempty"`
	Overall  *float64 `json:"overall,omitempty"`
}

// Event is the validated record produced by the pipeline.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
	Contacts    []Contact `json:"contacts,omitempty"`

	DateStart string `json:"date_start,omitempty"` // YYYY-MM-DD
	TimeStart string `json:"time_start,omitempty"` // HH:MM, 24h
	TimeEnd   string `json:"time_end,omitempty"`
	Timezone  string `json:"timezone"`

	Location string   `json:"location,omitempty"`
	URLs     []string `json:"urls,omitempty"`

	Food []FoodItem `json:"food,omitempty"`
	Free bool       `json:"free"`

	Category   string      `json:"category,omitempty"`
	Confidence *Confidence `json:"confidence,omitempty"`

	SourceMessageID string `json:"source_message_id"`
	SourceSubject   string `json:"source_subject,omitempty"`
	MailingList     string `json:"mailing_list,omitempty"`
}

// RawContact mirrors Contact with every field optional.
type RawContact struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// RawFoodItem mirrors FoodItem with every field optional. The oracle reports
// per-item cuisine confidence nested under "confidence".
type RawFoodItem struct {
	Name         *string     `json:"name"`
	QuantityHint *string     `json:"quantity_hint"`
	Cuisine      *string     `json:"cuisine"`
	Confidence   *Confidence `json:"confidence"`
}

// RawDraft is the untrusted, partially-typed document decoded from the
// oracle's JSON output. Every field is optional; the validator decides what
// survives. Keys correspond 1:1 to Event field names.
type RawDraft struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Organizer   *string      `json:"organizer"`
	Contacts    []RawContact `json:"contacts"`

	DateStart *string `json:"date_start"`
	TimeStart *string `json:"time_start"`
	TimeEnd   *string `json:"time_end"`
	Timezone  *string `json:"timezone"`

	Location *string  `json:"location"`
	URLs     []string `json:"urls"`

	Food []RawFoodItem `json:"food"`
	Free *bool         `json:"free"`

	Category   *string     `json:"category"`
	Confidence *Confidence `json:"confidence"`

	MailingList *string `json:"mailing_list"`
}

// CategoryConfidence returns the category score, or -1 when absent.
func (e *Event) CategoryConfidence() float64 {
	if e.Confidence == nil || e.Confidence.Category == nil {
		return -1
	}
	return *e.Confidence.Category
}

// PrimaryCuisine returns the most frequent cuisine across food items, or ""
// when none is tagged.
func (e *Event) PrimaryCuisine() string {
	counts := map[string]int{}
	for _, item := range e.Food {
		if item.Cuisine != "" {
			counts[item.Cuisine]++
		}
	}
	best, bestN := "", 0
	for c, n := range counts {
		if n > bestN {
			best, bestN = c, n
		}
	}
	return best
}
