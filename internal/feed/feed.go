// Package feed fetches and normalizes the RSS feeds events are imported from.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/civichall/event-importer/internal/store"
)

// Item is one normalized entry from a source feed.
type Item struct {
	Title       string
	Link        string
	GUID        string
	ContentHTML string
	Published   time.Time
}

// Fetcher pulls and parses RSS feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher creates a feed fetcher with a bounded fetch timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = store.UserAgent
	return &Fetcher{parser: parser}
}

// Fetch downloads and parses one feed. A fetch or parse failure is fatal to
// this feed only; the caller records it and moves to the next source.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", feedURL, err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		published := time.Time{}
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		}

		items = append(items, Item{
			Title:       entry.Title,
			Link:        entry.Link,
			GUID:        pickGUID(entry),
			ContentHTML: content,
			Published:   published,
		})
	}

	return items, nil
}

// pickGUID prefers the feed's GUID, falling back to the link, then the title.
func pickGUID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	return entry.Title
}
