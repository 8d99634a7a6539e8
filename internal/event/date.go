package event

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CivilFormat is how instants are serialized for the content store. Values
// carry no UTC offset; downstream readers interpret them as America/New_York
// wall-clock time. See the store schema notes before changing this.
const CivilFormat = "2006-01-02T15:04:05"

var eventLocation = loadLocation()

// loadLocation returns the civil calendar events are announced in. Hosts
// without tzdata fall back to a fixed EST offset; wall-clock construction is
// what matters here, not the offset itself, since stored values are civil.
func loadLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Location returns the fixed civil zone used for all resolved instants.
func Location() *time.Location {
	return eventLocation
}

var (
	// Feeds use a plain hyphen, an en dash, or an em dash between the start
	// and end times, with or without surrounding spaces.
	dashPattern = regexp.MustCompile(`\s*[-\x{2013}\x{2014}]\s*`)

	// Matches a 12-hour clock reading; AM/PM may hug the minutes ("6:00PM").
	clockPattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)

	// Strict rule: weekday-prefixed, comma-separated date ("Monday, January 26, 2026").
	strictDatePattern = regexp.MustCompile(`(?i)^(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\s*,?\s*([a-z]+)\s+(\d{1,2})\s*,\s*(\d{4})$`)

	// Lenient rule: ignores a missing or malformed weekday prefix.
	lenientDatePattern = regexp.MustCompile(`(?i)([a-z]+)\s+(\d{1,2})\s*,?\s*(\d{4})`)
)

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// ResolveTimes turns the raw date and time-range strings extracted from feed
// content into start and end instants in the fixed civil zone. Every failure
// is terminal for the item; the error names which rule rejected the input.
func ResolveTimes(rawDate, rawTime string) (start, end time.Time, err error) {
	rawDate = strings.TrimSpace(rawDate)
	rawTime = strings.TrimSpace(rawTime)
	if rawDate == "" || rawTime == "" {
		return start, end, fmt.Errorf("missing date or time text")
	}

	startClock, endClock, err := parseTimeRange(rawTime)
	if err != nil {
		return start, end, err
	}

	year, month, day, err := parseDate(rawDate)
	if err != nil {
		return start, end, err
	}

	start = time.Date(year, month, day, startClock.hour, startClock.minute, 0, 0, eventLocation)
	if start.Year() != year || start.Month() != month || start.Day() != day {
		// time.Date normalizes out-of-range days (Feb 30 becomes Mar 2)
		return time.Time{}, time.Time{}, fmt.Errorf("invalid calendar date %q", rawDate)
	}
	end = time.Date(year, month, day, endClock.hour, endClock.minute, 0, 0, eventLocation)

	return start, end, nil
}

type clock struct {
	hour   int
	minute int
}

// parseTimeRange splits a range like "6:00 PM — 10:00 PM EST" on any of the
// three recognized dash glyphs and parses each side as a 12-hour reading.
func parseTimeRange(raw string) (clock, clock, error) {
	parts := dashPattern.Split(raw, 2)
	if len(parts) != 2 {
		return clock{}, clock{}, fmt.Errorf("no time range in %q", raw)
	}

	startClock, err := parseClock(parts[0])
	if err != nil {
		return clock{}, clock{}, fmt.Errorf("start time: %w", err)
	}
	endClock, err := parseClock(parts[1])
	if err != nil {
		return clock{}, clock{}, fmt.Errorf("end time: %w", err)
	}

	return startClock, endClock, nil
}

// parseClock reads one 12-hour time token, tolerating missing space before
// the AM/PM marker, and converts to a 24-hour clock. Trailing zone
// abbreviations ("EST") are ignored.
func parseClock(token string) (clock, error) {
	m := clockPattern.FindStringSubmatch(token)
	if m == nil {
		return clock{}, fmt.Errorf("no time of day in %q", token)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return clock{}, fmt.Errorf("out-of-range time of day in %q", token)
	}

	// Standard noon/midnight rules: 12 AM is hour 0, 12 PM is hour 12.
	meridiem := strings.ToUpper(m[3])
	if meridiem == "AM" && hour == 12 {
		hour = 0
	} else if meridiem == "PM" && hour != 12 {
		hour += 12
	}

	return clock{hour: hour, minute: minute}, nil
}

// parseDate applies the strict weekday-prefixed pattern first, then retries
// with the lenient pattern that ignores the weekday prefix.
func parseDate(raw string) (int, time.Month, int, error) {
	m := strictDatePattern.FindStringSubmatch(raw)
	if m != nil {
		return resolveDateParts(m[2], m[3], m[4])
	}

	m = lenientDatePattern.FindStringSubmatch(raw)
	if m != nil {
		return resolveDateParts(m[1], m[2], m[3])
	}

	return 0, 0, 0, fmt.Errorf("unrecognized date %q", raw)
}

func resolveDateParts(monthName, dayText, yearText string) (int, time.Month, int, error) {
	month, ok := months[strings.ToLower(monthName)]
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown month %q", monthName)
	}
	day, _ := strconv.Atoi(dayText)
	year, _ := strconv.Atoi(yearText)
	return year, month, day, nil
}
