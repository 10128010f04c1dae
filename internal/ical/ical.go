// Package ical renders RFC 5545 calendars.
package ical

import (
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxLineOctets is the longest content line allowed before folding, excluding CRLF.
const MaxLineOctets = 75

const (
	crlf          = "\r\n"
	utcTimeLayout = "20060102T150405Z"
	dateLayout    = "20060102"
)

type Calendar struct {
	ProdID string
	Name   string
	Events []Event
}

type Event struct {
	UID          string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Summary      string
	Description  string
	Location     string
	URL          string
	Categories   []string
	Cancelled    bool
	Stamp        time.Time
	LastModified time.Time
}

// Write renders cal to w as a complete VCALENDAR object.
func Write(w io.Writer, cal Calendar) error {
	var b strings.Builder

	line := func(name, value string) {
		b.WriteString(Fold(name + ":" + value))
	}

	line("BEGIN", "VCALENDAR")
	line("VERSION", "2.0")
	line("PRODID", cal.ProdID)
	line("CALSCALE", "GREGORIAN")
	line("METHOD", "PUBLISH")
	if cal.Name != "" {
		line("X-WR-CALNAME", EscapeText(cal.Name))
	}

	for _, e := range cal.Events {
		line("BEGIN", "VEVENT")
		line("UID", e.UID)
		line("DTSTAMP", formatUTC(e.Stamp))
		if e.AllDay {
			start, end := allDayBounds(e.Start, e.End)
			line("DTSTART;VALUE=DATE", start)
			line("DTEND;VALUE=DATE", end)
		} else {
			line("DTSTART", formatUTC(e.Start))
			line("DTEND", formatUTC(e.End))
		}
		line("SUMMARY", EscapeText(e.Summary))
		if e.Description != "" {
			line("DESCRIPTION", EscapeText(e.Description))
		}
		if e.Location != "" {
			line("LOCATION", EscapeText(e.Location))
		}
		if e.URL != "" {
			line("URL", e.URL)
		}
		if len(e.Categories) > 0 {
			cats := make([]string, len(e.Categories))
			for i, c := range e.Categories {
				cats[i] = EscapeText(c)
			}
			line("CATEGORIES", strings.Join(cats, ","))
		}
		if e.Cancelled {
			line("STATUS", "CANCELLED")
		} else {
			line("STATUS", "CONFIRMED")
		}
		if !e.LastModified.IsZero() {
			line("LAST-MODIFIED", formatUTC(e.LastModified))
		}
		line("END", "VEVENT")
	}

	line("END", "VCALENDAR")

	_, err := io.WriteString(w, b.String())
	return err
}

// EscapeText escapes a TEXT property value.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fold splits a content line into CRLF-terminated physical lines of at most
// MaxLineOctets octets. Continuation lines start with one space, which counts
// toward their length. A multi-byte UTF-8 sequence is never split.
func Fold(line string) string {
	if len(line) <= MaxLineOctets {
		return line + crlf
	}

	var b strings.Builder
	b.Grow(len(line) + len(line)/MaxLineOctets*3 + 2)

	limit := MaxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString(crlf + " ")
		line = line[cut:]
		limit = MaxLineOctets - 1
	}
	b.WriteString(line)
	b.WriteString(crlf)
	return b.String()
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(utcTimeLayout)
}

// allDayBounds returns DATE values for an all-day event. DTEND is exclusive,
// so it is the day after the last day covered and at least one day after DTSTART.
func allDayBounds(start, end time.Time) (string, string) {
	s := dateOnly(start)
	e := dateOnly(end)
	if e.Before(s) {
		e = s
	}
	return s.Format(dateLayout), e.AddDate(0, 0, 1).Format(dateLayout)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
