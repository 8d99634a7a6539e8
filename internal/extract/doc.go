// Package extract turns one feed item's rich-content HTML into the content
// fields of a candidate event.
//
// Feed content encodes date, time, and venue as a blockquote of decorated
// lines; the extractor classifies those lines by explicit ordered rules,
// pulls the first image, assembles the narrative description from the
// paragraphs before the blockquote, and records any Luma or Meetup links as
// RSVP fallbacks. Content with no blockquote region fails extraction.
package extract
