package importer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civichall/event-importer/internal/assets"
	"github.com/civichall/event-importer/internal/config"
	"github.com/civichall/event-importer/internal/entity"
	"github.com/civichall/event-importer/internal/event"
	"github.com/civichall/event-importer/internal/extract"
	"github.com/civichall/event-importer/internal/feed"
	"github.com/civichall/event-importer/internal/logger"
	"github.com/civichall/event-importer/internal/rsvp"
	"github.com/civichall/event-importer/internal/store"
)

// FeedResult is the outcome of one feed source.
type FeedResult struct {
	Source config.FeedSource `json:"source"`
	Stats  Stats             `json:"stats"`
	Error  string            `json:"error,omitempty"`
}

// Summary is the aggregate result of one import run.
type Summary struct {
	RunID   string       `json:"run_id"`
	Feeds   []FeedResult `json:"feeds"`
	Overall Stats        `json:"overall"`
}

// Engine orchestrates the per-item pipeline: extraction, date resolution,
// RSVP resolution, and reconciliation against the content store. Feeds and
// items are processed strictly sequentially; no individual item failure
// aborts the batch.
type Engine struct {
	cfg      *config.Config
	store    *store.Client
	feeds    *feed.Fetcher
	entities *entity.Resolver
	assets   *assets.Importer
	rsvp     *rsvp.Resolver
	now      func() time.Time
}

// New wires an Engine from the run configuration.
func New(cfg *config.Config) *Engine {
	storeClient := store.New(cfg.StoreURL, cfg.Token, cfg.HTTPTimeout, cfg.DryRun)
	return &Engine{
		cfg:      cfg,
		store:    storeClient,
		feeds:    feed.NewFetcher(cfg.HTTPTimeout),
		entities: entity.NewResolver(storeClient, cfg.TagRules),
		assets:   assets.NewImporter(storeClient, cfg.HTTPTimeout),
		rsvp:     rsvp.NewResolver(cfg.HTTPTimeout),
		now:      time.Now,
	}
}

// Run processes every configured feed source in declaration order and
// returns the aggregate summary. The run always completes; failures are
// confined to their item or feed.
func (e *Engine) Run(ctx context.Context) Summary {
	summary := Summary{RunID: uuid.NewString()}

	logger.Info("import run started", logger.Fields{
		"run_id":  summary.RunID,
		"feeds":   len(e.cfg.Feeds),
		"dry_run": e.cfg.DryRun,
	})

	for _, src := range e.cfg.Feeds {
		result := e.runFeed(ctx, summary.RunID, src)
		summary.Feeds = append(summary.Feeds, result)
		summary.Overall = summary.Overall.Merge(result.Stats)
	}

	logger.Info("import run finished", logger.Fields{
		"run_id":  summary.RunID,
		"total":   summary.Overall.Total,
		"created": summary.Overall.Created,
		"updated": summary.Overall.Updated,
		"skipped": summary.Overall.Skipped,
		"failed":  summary.Overall.Failed,
	})

	return summary
}

func (e *Engine) runFeed(ctx context.Context, runID string, src config.FeedSource) FeedResult {
	result := FeedResult{Source: src}

	items, err := e.feeds.Fetch(ctx, src.URL)
	if err != nil {
		logger.Error("feed fetch failed", logger.Fields{
			"run_id": runID,
			"source": src.Label,
			"url":    src.URL,
		}, err)
		result.Error = err.Error()
		return result
	}

	logger.Info("feed fetched", logger.Fields{
		"run_id": runID,
		"source": src.Label,
		"items":  len(items),
	})

	for i, item := range items {
		if i > 0 {
			// Throttle outbound calls to the store and the scraped site.
			sleep(ctx, e.cfg.Delay)
		}

		outcome := e.processItem(ctx, src, item)
		logger.Info("item processed", logger.Fields{
			"run_id": runID,
			"source": src.Label,
			"link":   item.Link,
			"status": string(outcome.Status),
			"reason": outcome.Reason,
		})
		result.Stats = result.Stats.Add(outcome)
	}

	return result
}

// processItem walks one feed item through the pipeline states:
// Parsing, DateResolving, PastCheck, ExistenceCheck, then Creating,
// Updating, or Skipping.
func (e *Engine) processItem(ctx context.Context, src config.FeedSource, item feed.Item) Outcome {
	cand, err := extract.Parse(item.ContentHTML)
	if err != nil {
		logger.Warn("content extraction failed", logger.Fields{
			"link":  item.Link,
			"error": err.Error(),
		})
		return Outcome{Status: StatusFailed, Reason: ReasonParseError}
	}
	cand.Title = item.Title
	cand.SourceURL = item.Link
	cand.SourceGUID = item.GUID

	start, end, err := event.ResolveTimes(cand.RawDateText, cand.RawTimeText)
	if err != nil {
		logger.Warn("date resolution failed", logger.Fields{
			"link":      item.Link,
			"date_text": cand.RawDateText,
			"time_text": cand.RawTimeText,
			"error":     err.Error(),
		})
		return Outcome{Status: StatusFailed, Reason: ReasonDateParseError}
	}

	// Stale entries never enter the store, and past items skip everything
	// else, including the update check.
	if start.Before(e.now()) {
		return Outcome{Status: StatusSkipped, Reason: ReasonPastEvent}
	}

	rsvpURL := e.resolveRSVP(ctx, cand)

	existing, err := e.store.ListEvents(ctx, store.Filter{"link": cand.SourceURL}, 1)
	if err != nil {
		// Creating blind after a failed existence check risks a duplicate.
		logger.Error("existence check failed", logger.Fields{"link": cand.SourceURL}, err)
		return Outcome{Status: StatusFailed, Reason: ReasonStoreError}
	}

	if len(existing) == 0 {
		return e.createEvent(ctx, src, item, cand, start, end, rsvpURL)
	}
	return e.backfillEvent(ctx, &existing[0], cand, rsvpURL)
}

// resolveRSVP prefers the live page scrape; in dry-run mode only the
// feed-derived links are consulted so the run stays read-light.
func (e *Engine) resolveRSVP(ctx context.Context, cand *event.Candidate) string {
	if e.cfg.DryRun {
		return cand.FeedRSVP()
	}
	return e.rsvp.Resolve(ctx, cand)
}

// importImage runs the asset importer; in dry-run mode nothing is fetched.
func (e *Engine) importImage(ctx context.Context, imageURL string) string {
	if e.cfg.DryRun || imageURL == "" {
		return ""
	}
	return e.assets.Import(ctx, imageURL)
}

// createEvent submits a field-complete published event. Venue, tag, and
// image resolution failures are absorbed; a rejected create fails the item.
func (e *Engine) createEvent(ctx context.Context, src config.FeedSource, item feed.Item, cand *event.Candidate, start, end time.Time, rsvpURL string) Outcome {
	imageID := e.importImage(ctx, cand.ImageURL)

	venueID, err := e.entities.Venue(ctx, cand.VenueName, cand.VenueAddress)
	if err != nil {
		logger.Warn("venue resolution failed", logger.Fields{
			"link":  cand.SourceURL,
			"venue": cand.VenueName,
			"error": err.Error(),
		})
	}

	tagID, err := e.entities.Tag(ctx, cand.Title)
	if err != nil {
		logger.Warn("tag resolution failed", logger.Fields{
			"link":  cand.SourceURL,
			"error": err.Error(),
		})
	}

	fields := store.EventFields{
		Status:             store.StatusPublished,
		Title:              cand.Title,
		Link:               cand.SourceURL,
		StartTime:          start.Format(event.CivilFormat),
		EndTime:            end.Format(event.CivilFormat),
		Description:        cand.Description,
		RawDescription:     item.ContentHTML,
		ParsedVenueName:    cand.VenueName,
		ParsedVenueAddress: cand.VenueAddress,
		Source:             src.Label,
		Imported:           true,
		RSVPLink:           rsvpURL,
		Venue:              venueID,
		Tag:                tagID,
		Image:              imageID,
	}

	if _, err := e.store.CreateEvent(ctx, fields); err != nil {
		// The store's error payload rides on err for diagnosis.
		logger.Error("event create rejected", logger.Fields{"link": cand.SourceURL}, err)
		return Outcome{Status: StatusFailed, Reason: ReasonCreateError}
	}

	return Outcome{Status: StatusCreated}
}

// backfillEvent patches only fields that are empty on the stored record and
// available on the candidate: image, RSVP link, and tag. Populated fields
// are never overwritten. An update failure is absorbed; the pre-existing
// record remains valid.
func (e *Engine) backfillEvent(ctx context.Context, existing *store.EventRecord, cand *event.Candidate, rsvpURL string) Outcome {
	patch := map[string]interface{}{}

	if existing.Image.IsZero() && cand.ImageURL != "" {
		if imageID := e.importImage(ctx, cand.ImageURL); imageID != "" {
			patch["image"] = imageID
		}
	}

	if existing.RSVPLink == "" && rsvpURL != "" {
		patch["rsvp_link"] = rsvpURL
	}

	if existing.Tag.IsZero() {
		tagID, err := e.entities.Tag(ctx, cand.Title)
		if err != nil {
			logger.Warn("tag resolution failed", logger.Fields{
				"link":  cand.SourceURL,
				"error": err.Error(),
			})
		} else if tagID != "" {
			patch["tag"] = tagID
		}
	}

	if len(patch) == 0 {
		return Outcome{Status: StatusSkipped, Reason: ReasonAlreadyExists}
	}

	if err := e.store.UpdateEvent(ctx, existing.ID, patch); err != nil {
		logger.Warn("back-fill update failed", logger.Fields{
			"link":  cand.SourceURL,
			"id":    existing.ID,
			"error": err.Error(),
		})
		return Outcome{Status: StatusSkipped, Reason: ReasonAlreadyExists}
	}

	return Outcome{Status: StatusUpdated}
}

// sleep waits for the inter-item delay or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
