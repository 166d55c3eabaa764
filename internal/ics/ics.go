// Package ics serializes validated events into iCalendar files. It is a pure
// serializer: deterministic output for a given input, no learning, no I/O.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/picnicd/picnic/internal/event"
)

const prodID = "-//picnic//event parser//EN"

// DefaultDuration is applied when an event has a start time but no end time.
const DefaultDuration = time.Hour

// Generate renders a VCALENDAR document for the given events. now is the
// DTSTAMP applied to every VEVENT, passed in so output stays deterministic.
func Generate(events []*event.Event, now time.Time) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	for _, ev := range events {
		lines = append(lines, eventLines(ev, now)...)
	}
	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n")
}

func eventLines(ev *event.Event, now time.Time) []string {
	lines := []string{"BEGIN:VEVENT"}

	uid := ev.SourceMessageID
	if uid == "" {
		uid = "unknown"
	}
	lines = append(lines,
		"UID:"+uid+"@picnic.local",
		"DTSTAMP:"+now.UTC().Format("20060102T150405Z"),
	)

	if start, end, err := EventTimes(ev); err == nil {
		lines = append(lines,
			"DTSTART:"+start.Format("20060102T150405"),
			"DTEND:"+end.Format("20060102T150405"),
		)
	}

	lines = append(lines, "SUMMARY:"+escape(ev.Title))

	if desc := description(ev); desc != "" {
		lines = append(lines, "DESCRIPTION:"+escape(desc))
	}
	if ev.Location != "" {
		lines = append(lines, "LOCATION:"+escape(ev.Location))
	}
	if ev.Organizer != "" {
		lines = append(lines, "ORGANIZER;CN="+escape(ev.Organizer)+":MAILTO:noreply@picnic.local")
	}
	for _, c := range ev.Contacts {
		if c.Email == "" {
			continue
		}
		lines = append(lines, "ATTENDEE;CN="+escape(c.Name)+":MAILTO:"+c.Email)
	}
	if ev.Category != "" {
		lines = append(lines, "CATEGORIES:"+escape(ev.Category))
	}
	if cuisine := ev.PrimaryCuisine(); cuisine != "" {
		lines = append(lines, "X-CUISINE:"+escape(cuisine))
	}
	if ev.SourceSubject != "" {
		lines = append(lines, "X-SOURCE-SUBJECT:"+escape(ev.SourceSubject))
	}
	if ev.MailingList != "" {
		lines = append(lines, "X-MAILING-LIST:"+escape(ev.MailingList))
	}

	lines = append(lines, "END:VEVENT")
	return lines
}

// EventTimes derives the wall-clock start and end instants in the event's
// declared timezone. When no end time is present the default one-hour
// duration applies. Events without a start date are not schedulable and
// return an error.
func EventTimes(ev *event.Event) (time.Time, time.Time, error) {
	if ev.DateStart == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("event %q has no start date", ev.Title)
	}
	loc, err := time.LoadLocation(ev.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("timezone %q: %w", ev.Timezone, err)
	}

	clock := ev.TimeStart
	if clock == "" {
		clock = "00:00"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", ev.DateStart+" "+clock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing start: %w", err)
	}

	if ev.TimeEnd != "" {
		end, err := time.ParseInLocation("2006-01-02 15:04", ev.DateStart+" "+ev.TimeEnd, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing end: %w", err)
		}
		return start, end, nil
	}
	return start, start.Add(DefaultDuration), nil
}

func description(ev *event.Event) string {
	var parts []string
	if ev.Description != "" {
		parts = append(parts, ev.Description)
	}
	if len(ev.Food) > 0 {
		var items []string
		for _, item := range ev.Food {
			s := item.Name
			if item.QuantityHint != "" {
				s += " (" + item.QuantityHint + ")"
			}
			if item.Cuisine != "" {
				s += " [" + item.Cuisine + "]"
			}
			items = append(items, s)
		}
		parts = append(parts, "Food: "+strings.Join(items, ", "))
	}
	if len(ev.URLs) > 0 {
		parts = append(parts, "Links: "+strings.Join(ev.URLs, ", "))
	}
	return strings.Join(parts, "\n\n")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
