// Package rsvp determines the best outbound registration link for an event.
//
// A live scrape of the event's source page is authoritative; links embedded
// in the feed content (Luma first, then Meetup) are the fallback when the
// page is unreachable or carries no website field. Scrape failures never
// fail the item.
package rsvp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civichall/event-importer/internal/event"
	"github.com/civichall/event-importer/internal/logger"
	"github.com/civichall/event-importer/internal/store"
)

// websiteFieldSelector locates the event page's website field.
const websiteFieldSelector = ".field--name-field-website a[href]"

// Resolver scrapes event pages for their website field.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a page-scrape resolver with a bounded fetch timeout.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve returns the best RSVP URL for the candidate: the source page's
// website field when the scrape succeeds, otherwise the feed-derived
// fallback. Empty when neither exists.
func (r *Resolver) Resolve(ctx context.Context, cand *event.Candidate) string {
	if link, err := r.scrapeWebsiteField(ctx, cand.SourceURL); err != nil {
		logger.Warn("rsvp page scrape failed", logger.Fields{
			"url":   cand.SourceURL,
			"error": err.Error(),
		})
	} else if link != "" {
		return link
	}

	return cand.FeedRSVP()
}

// scrapeWebsiteField fetches the source page and extracts the website
// field's link target. An empty result with nil error means the page loaded
// but has no website field.
func (r *Resolver) scrapeWebsiteField(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", store.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	href, ok := doc.Find(websiteFieldSelector).First().Attr("href")
	if !ok {
		return "", nil
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", nil
	}

	// The field may hold a relative link; resolve it against the page.
	if base, err := url.Parse(pageURL); err == nil {
		if ref, err := url.Parse(href); err == nil {
			return base.ResolveReference(ref).String(), nil
		}
	}
	return href, nil
}
