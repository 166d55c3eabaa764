package event

import (
	"errors"
	"testing"

	"github.com/picnicd/picnic/internal/config"
)

func strp(s string) *string    { return &s }
func fp(f float64) *float64    { return &f }
func boolp(b bool) *bool       { return &b }
func newValidator() *Validator { return NewValidator(config.Default()) }

func TestValidateMinimalDraft(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{Title: strp("Tea Time")}, "msg-1", "[GG.Social] Tea Time")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.Title != "Tea Time" {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.SourceMessageID != "msg-1" {
		t.Errorf("SourceMessageID = %q", ev.SourceMessageID)
	}
	if ev.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q, want default", ev.Timezone)
	}
	if !ev.Free {
		t.Error("Free should default to true")
	}
	if ev.MailingList != "GG.Social" {
		t.Errorf("MailingList = %q, want extracted from subject", ev.MailingList)
	}
}

func TestValidateTitleRequired(t *testing.T) {
	v := newValidator()
	for _, title := range []*string{nil, strp(""), strp("   "), strp("TBD"), strp("N/A")} {
		_, err := v.Validate(&RawDraft{Title: title}, "m", "s")
		var rej *RejectError
		if !errors.As(err, &rej) || rej.Field != "title" {
			t.Errorf("title %v: expected title rejection, got %v", title, err)
		}
	}
}

func TestValidateDateFormat(t *testing.T) {
	v := newValidator()

	ev, err := v.Validate(&RawDraft{Title: strp("x"), DateStart: strp("2025-09-19")}, "m", "s")
	if err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	if ev.DateStart != "2025-09-19" {
		t.Errorf("DateStart = %q", ev.DateStart)
	}
}

func TestValidateDateAndTimeRejection(t *testing.T) {
	v := newValidator()
	tests := []struct {
		name  string
		draft RawDraft
		field string
	}{
		{"US date", RawDraft{Title: strp("x"), DateStart: strp("09/19/2025")}, "date_start"},
		{"unpadded date", RawDraft{Title: strp("x"), DateStart: strp("2025-9-19")}, "date_start"},
		{"prose date", RawDraft{Title: strp("x"), DateStart: strp("next Friday")}, "date_start"},
		{"12h time", RawDraft{Title: strp("x"), TimeStart: strp("7:00 PM")}, "time_start"},
		{"unpadded time", RawDraft{Title: strp("x"), TimeStart: strp("9:30")}, "time_start"},
		{"bad end time", RawDraft{Title: strp("x"), TimeEnd: strp("noon")}, "time_end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(&tt.draft, "m", "s")
			var rej *RejectError
			if !errors.As(err, &rej) {
				t.Fatalf("expected RejectError, got %v", err)
			}
			if rej.Field != tt.field {
				t.Errorf("rejected field = %q, want %q", rej.Field, tt.field)
			}
		})
	}
}

func TestValidatePlaceholdersBecomeAbsence(t *testing.T) {
	v := newValidator()
	// A placeholder date must not be rejected as malformed; it is absent.
	ev, err := v.Validate(&RawDraft{
		Title:     strp("x"),
		DateStart: strp("TBD"),
		TimeStart: strp("null"),
		Location:  strp("N/A"),
		Organizer: strp("None"),
	}, "m", "s")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.DateStart != "" || ev.TimeStart != "" || ev.Location != "" || ev.Organizer != "" {
		t.Errorf("placeholders leaked through: %+v", ev)
	}
}

func TestValidateVocabularyViolationsAreNulled(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{
		Title:    strp("x"),
		Category: strp("rave"), // not in vocabulary
		Food: []RawFoodItem{
			{Name: strp("empanadas"), Cuisine: strp("Martian")},
			{Name: strp("pasta"), Cuisine: strp("Italian")},
		},
	}, "m", "s")
	if err != nil {
		t.Fatalf("vocabulary violation must not reject: %v", err)
	}
	if ev.Category != "" {
		t.Errorf("unknown category kept: %q", ev.Category)
	}
	if ev.Food[0].Cuisine != "" {
		t.Errorf("unknown cuisine kept: %q", ev.Food[0].Cuisine)
	}
	if ev.Food[1].Cuisine != "Italian" {
		t.Errorf("valid cuisine lost: %q", ev.Food[1].Cuisine)
	}
}

func TestValidateConfidenceRange(t *testing.T) {
	v := newValidator()
	_, err := v.Validate(&RawDraft{
		Title:      strp("x"),
		Confidence: &Confidence{Category: fp(1.5)},
	}, "m", "s")
	var rej *RejectError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection for confidence outside [0,1], got %v", err)
	}

	_, err = v.Validate(&RawDraft{
		Title: strp("x"),
		Food:  []RawFoodItem{{Name: strp("pie"), Confidence: &Confidence{Cuisine: fp(-0.1)}}},
	}, "m", "s")
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection for food confidence outside [0,1], got %v", err)
	}
}

func TestValidateFoodNameRequired(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{
		Title: strp("x"),
		Food: []RawFoodItem{
			{Name: strp("TBD")},
			{Name: nil},
			{Name: strp("  Brigadeiro  ")},
		},
	}, "m", "s")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(ev.Food) != 1 {
		t.Fatalf("expected 1 surviving food item, got %d", len(ev.Food))
	}
	if ev.Food[0].Name != "brigadeiro" {
		t.Errorf("food name not normalized: %q", ev.Food[0].Name)
	}
}

func TestValidateContactsCleanup(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{
		Title: strp("x"),
		Contacts: []RawContact{
			{Name: strp("TBD"), Email: strp("")},
			{Name: strp("Ada"), Email: strp("ada@example.edu")},
			{Email: strp("ops@example.edu")},
		},
	}, "m", "s")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(ev.Contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d: %+v", len(ev.Contacts), ev.Contacts)
	}
}

func TestValidateDashAndWhitespaceCleanup(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{
		Title:    strp("Tea—and–Cookies   Social"),
		Location: strp("Room   101–B"),
	}, "m", "s")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.Title != "Tea-and-Cookies Social" {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Location != "Room 101-B" {
		t.Errorf("Location = %q", ev.Location)
	}
}

func TestValidateExplicitMailingListWins(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{
		Title:       strp("x"),
		MailingList: strp("gg-events"),
	}, "m", "[Other.List] subject")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.MailingList != "gg-events" {
		t.Errorf("MailingList = %q, want the oracle-supplied value", ev.MailingList)
	}
}

func TestValidateFreeOverride(t *testing.T) {
	v := newValidator()
	ev, err := v.Validate(&RawDraft{Title: strp("x"), Free: boolp(false)}, "m", "s")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.Free {
		t.Error("explicit free=false should survive")
	}
}

func TestDetectFree(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Free pizza for everyone!", true},
		{"Tickets are $15 at the door", false},
		{"Entrance fee applies", false},
		{"Come hang out with us", true},
		{"Buy your spot now", false},
	}
	for _, tt := range tests {
		if got := DetectFree(tt.text); got != tt.want {
			t.Errorf("DetectFree(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractMailingList(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"[GG.Events] Pizza Night", "GG.Events"},
		{"Re: [dorm-announce] hi", "dorm-announce"},
		{"no brackets here", ""},
		{"[first] and [second]", "first"},
	}
	for _, tt := range tests {
		if got := ExtractMailingList(tt.subject); got != tt.want {
			t.Errorf("ExtractMailingList(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}
