package archive

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/picnicd/picnic/internal/event"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleEvent(messageID string) *event.Event {
	return &event.Event{
		Title:           "Pizza Night",
		DateStart:       "2025-09-19",
		TimeStart:       "19:00",
		Timezone:        "America/New_York",
		Location:        "Common Room",
		Category:        "social",
		Free:            true,
		Food:            []event.FoodItem{{Name: "pizza", Cuisine: "Italian"}},
		URLs:            []string{"https://example.edu/pizza"},
		SourceMessageID: messageID,
		SourceSubject:   "[GG.Events] Pizza Night",
		MailingList:     "GG.Events",
	}
}

func TestSaveAndList(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	id, err := a.Save(ctx, sampleEvent("msg-1"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected a row id")
	}

	events, err := a.List(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	got := events[0]
	if got.Title != "Pizza Night" || got.DateStart != "2025-09-19" || !got.Free {
		t.Errorf("round trip mangled the event: %+v", got)
	}
	if len(got.Food) != 1 || got.Food[0].Cuisine != "Italian" {
		t.Errorf("food lost: %+v", got.Food)
	}
}

func TestSaveUpsertsByMessageID(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	id1, err := a.Save(ctx, sampleEvent("msg-1"))
	if err != nil {
		t.Fatal(err)
	}

	updated := sampleEvent("msg-1")
	updated.Location = "Room 32-123"
	id2, err := a.Save(ctx, updated)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("re-saving the same message must update in place: %s vs %s", id1, id2)
	}

	n, err := a.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	events, _ := a.List(ctx, ListOpts{})
	if events[0].Location != "Room 32-123" {
		t.Errorf("location = %q", events[0].Location)
	}
}

func TestMergeSighting(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	ev := sampleEvent("msg-1")
	ev.MailingList = ""
	id, err := a.Save(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}

	dup := sampleEvent("msg-2")
	dup.URLs = []string{"https://example.edu/pizza", "https://example.edu/rsvp"}
	if err := a.MergeSighting(ctx, id, dup); err != nil {
		t.Fatalf("MergeSighting: %v", err)
	}

	events, _ := a.List(ctx, ListOpts{})
	wantURLs := []string{"https://example.edu/pizza", "https://example.edu/rsvp"}
	if !reflect.DeepEqual(events[0].URLs, wantURLs) {
		t.Errorf("urls = %v, want %v", events[0].URLs, wantURLs)
	}
	if events[0].MailingList != "GG.Events" {
		t.Errorf("mailing list not adopted from the new sighting: %q", events[0].MailingList)
	}
}

func TestMergeSightingConfidence(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	f := func(v float64) *float64 { return &v }

	ev := sampleEvent("msg-1")
	ev.Confidence = &event.Confidence{Category: f(0.5), Overall: f(0.9)}
	id, err := a.Save(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}

	// A later sighting scores category higher, overall lower, and brings a
	// cuisine score the first one lacked.
	dup := sampleEvent("msg-2")
	dup.Confidence = &event.Confidence{Category: f(0.8), Cuisine: f(0.7), Overall: f(0.6)}
	if err := a.MergeSighting(ctx, id, dup); err != nil {
		t.Fatalf("MergeSighting: %v", err)
	}

	events, _ := a.List(ctx, ListOpts{})
	got := events[0].Confidence
	if got == nil {
		t.Fatal("confidence lost in merge")
	}
	if got.Category == nil || *got.Category != 0.8 {
		t.Errorf("category = %v, want 0.8", got.Category)
	}
	if got.Cuisine == nil || *got.Cuisine != 0.7 {
		t.Errorf("cuisine = %v, want 0.7", got.Cuisine)
	}
	if got.Overall == nil || *got.Overall != 0.9 {
		t.Errorf("overall = %v, want 0.9 (max must win)", got.Overall)
	}
}

func TestMergeSightingUnknownID(t *testing.T) {
	a := newTestArchive(t)
	if err := a.MergeSighting(context.Background(), "no-such-id", sampleEvent("msg-9")); err != nil {
		t.Errorf("merging into a never-archived event should be a no-op, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	early := sampleEvent("msg-1")
	early.DateStart = "2025-09-01"

	late := sampleEvent("msg-2")
	late.Title = "Paid Concert"
	late.DateStart = "2025-09-25"
	late.Category = "concert"
	late.Free = false

	for _, ev := range []*event.Event{early, late} {
		if _, err := a.Save(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		opts ListOpts
		want int
	}{
		{"no filter", ListOpts{}, 2},
		{"since", ListOpts{Since: "2025-09-10"}, 1},
		{"until", ListOpts{Until: "2025-09-10"}, 1},
		{"window", ListOpts{Since: "2025-09-01", Until: "2025-09-30"}, 2},
		{"category", ListOpts{Category: "concert"}, 1},
		{"free only", ListOpts{FreeOnly: true}, 1},
		{"limit", ListOpts{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := a.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestListOrdering(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	second := sampleEvent("msg-1")
	second.Title = "Later"
	second.DateStart = "2025-09-25"
	first := sampleEvent("msg-2")
	first.Title = "Sooner"
	first.DateStart = "2025-09-01"

	for _, ev := range []*event.Event{second, first} {
		if _, err := a.Save(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := a.List(ctx, ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if events[0].Title != "Sooner" || events[1].Title != "Later" {
		t.Errorf("wrong order: %q then %q", events[0].Title, events[1].Title)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	if _, err := a.Count(context.Background()); err != nil {
		t.Errorf("Count: %v", err)
	}
}
