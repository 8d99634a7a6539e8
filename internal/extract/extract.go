package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/civichall/event-importer/internal/event"
)

// ErrNoBlockquote signals that the feed item's content has no blockquote
// region, so date, time, and venue cannot be located. The item is a parse
// failure and is not retried within the run.
var ErrNoBlockquote = errors.New("no blockquote region in content")

const timeMarker = "Time:"

var (
	// A date line carries a weekday name and a 4-digit year.
	dateLinePattern = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b.*\b(19|20)\d{2}\b`)

	brPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// travelMarkers end the narrative description; blocks from the first match
// onward are logistics content, not event copy.
var travelMarkers = []string{
	"getting there",
	"how to get there",
	"by subway",
	"by train",
	"by bus",
	"parking",
	"directions",
	"accessibility",
}

// Parse extracts the content-shaped fields of a Candidate from one feed
// item's embedded rich-content HTML. The returned candidate has only content
// fields set; provenance fields are the caller's job.
func Parse(contentHTML string) (*event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing content HTML: %w", err)
	}

	blockquote := doc.Find("blockquote").First()
	if blockquote.Length() == 0 {
		return nil, ErrNoBlockquote
	}

	cand := &event.Candidate{}
	classifyDetailLines(blockquoteLines(blockquote), cand)

	if src, ok := doc.Find("img").First().Attr("src"); ok {
		cand.ImageURL = strings.TrimSpace(src)
	}

	cand.Description = describeNarrative(doc)
	cand.LumaURL, cand.MeetupURL = findRSVPLinks(doc)

	return cand, nil
}

// detailLine is one entry of the blockquote region after glyph stripping.
type detailLine struct {
	text     string
	hadGlyph bool
}

// blockquoteLines splits the blockquote region into trimmed lines. The region
// uses either literal newlines or <br> breaks between entries, so <br> tags
// are rewritten to newlines before the text is pulled out.
func blockquoteLines(blockquote *goquery.Selection) []detailLine {
	inner, err := blockquote.Html()
	if err != nil {
		inner = blockquote.Text()
	}
	inner = brPattern.ReplaceAllString(inner, "\n")

	text := inner
	if frag, err := goquery.NewDocumentFromReader(strings.NewReader(inner)); err == nil {
		text = frag.Text()
	}

	var lines []detailLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		stripped, hadGlyph := stripLeadingGlyphs(raw)
		if stripped == "" {
			continue
		}
		lines = append(lines, detailLine{text: stripped, hadGlyph: hadGlyph})
	}
	return lines
}

// classifyDetailLines applies the ordered line rules: the weekday+year line is
// the date, a "Time:" line is the time range, the first glyph-prefixed
// non-time line after the date is the venue name, and a plain line directly
// after the venue is its address.
func classifyDetailLines(lines []detailLine, cand *event.Candidate) {
	dateIdx := -1
	for i, line := range lines {
		if cand.RawDateText == "" && dateLinePattern.MatchString(line.text) {
			cand.RawDateText = line.text
			dateIdx = i
			continue
		}
		if cand.RawTimeText == "" {
			if _, after, found := strings.Cut(line.text, timeMarker); found {
				cand.RawTimeText = strings.TrimSpace(after)
			}
		}
	}

	if dateIdx < 0 {
		return
	}

	for i := dateIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if isTimeLine(line.text) {
			continue
		}
		if !line.hadGlyph {
			continue
		}
		cand.VenueName = line.text

		// A plain line right after the venue name is its street address.
		if i+1 < len(lines) {
			next := lines[i+1]
			if !next.hadGlyph && !isTimeLine(next.text) {
				cand.VenueAddress = next.text
			}
		}
		return
	}
}

func isTimeLine(text string) bool {
	return strings.Contains(text, timeMarker)
}

// stripLeadingGlyphs drops decorative leading runes (emoji and other
// non-ASCII symbols) plus any following whitespace, reporting whether
// anything was stripped.
func stripLeadingGlyphs(line string) (string, bool) {
	stripped := false
	for line != "" {
		r, size := utf8.DecodeRuneInString(line)
		if isGlyph(r) {
			line = line[size:]
			stripped = true
			continue
		}
		if stripped && unicode.IsSpace(r) {
			line = line[size:]
			continue
		}
		break
	}
	return strings.TrimSpace(line), stripped
}

// isGlyph reports whether a rune is decorative rather than content. Anything
// beyond ASCII that is not a letter or digit counts, which covers emoji and
// their variation selectors without an emoji table.
func isGlyph(r rune) bool {
	return r > unicode.MaxASCII && !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// describeNarrative collects the narrative paragraph blocks preceding the
// blockquote region, skipping image-bearing blocks, and stops once
// travel/logistics content begins.
func describeNarrative(doc *goquery.Document) string {
	var parts []string

	doc.Find("body").Children().EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Is("blockquote") || sel.Find("blockquote").Length() > 0 {
			return false
		}
		if !sel.Is("p") {
			return true
		}
		if sel.Find("img").Length() > 0 {
			return true
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}
		if isTravelContent(text) {
			return false
		}

		parts = append(parts, text)
		return true
	})

	return strings.Join(parts, "\n\n")
}

func isTravelContent(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range travelMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// findRSVPLinks scans every hyperlink in the content and records the first
// Luma-host link and the first Meetup-host link.
func findRSVPLinks(doc *goquery.Document) (lumaURL, meetupURL string) {
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}

		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		host := strings.ToLower(u.Hostname())

		switch {
		case lumaURL == "" && isLumaHost(host):
			lumaURL = href
		case meetupURL == "" && isMeetupHost(host):
			meetupURL = href
		}

		return lumaURL == "" || meetupURL == ""
	})
	return lumaURL, meetupURL
}

func isLumaHost(host string) bool {
	return host == "lu.ma" || strings.HasSuffix(host, ".lu.ma") || host == "luma.com"
}

func isMeetupHost(host string) bool {
	return host == "meetup.com" || strings.HasSuffix(host, ".meetup.com") || host == "meetu.ps"
}
