package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civichall/event-importer/internal/config"
)

// fakeStore is an in-memory content store speaking just enough of the REST
// API for the engine: filtered list, create, patch, and file upload.
type fakeStore struct {
	mu      sync.Mutex
	events  []map[string]interface{}
	venues  []map[string]interface{}
	tags    []map[string]interface{}
	patches []map[string]interface{}
	nextID  int

	failPatch  bool
	failCreate bool
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) find(items []map[string]interface{}, field, value string) []map[string]interface{} {
	matches := []map[string]interface{}{}
	for _, item := range items {
		if s, _ := item[field].(string); s == value {
			matches = append(matches, item)
		}
	}
	return matches
}

func (f *fakeStore) collection(name string) *[]map[string]interface{} {
	switch name {
	case "events":
		return &f.events
	case "venues":
		return &f.venues
	case "tags":
		return &f.tags
	}
	return nil
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": f.id("file")},
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/items/"):
		name := strings.TrimPrefix(r.URL.Path, "/items/")
		items := f.collection(name)
		if items == nil {
			http.NotFound(w, r)
			return
		}
		matches := *items
		for key, vals := range r.URL.Query() {
			if !strings.HasPrefix(key, "filter[") {
				continue
			}
			field := strings.TrimSuffix(strings.TrimPrefix(key, "filter["), "][_eq]")
			matches = f.find(matches, field, vals[0])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": matches})

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/items/"):
		name := strings.TrimPrefix(r.URL.Path, "/items/")
		items := f.collection(name)
		if items == nil {
			http.NotFound(w, r)
			return
		}
		if name == "events" && f.failCreate {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"errors":[{"message":"validation failed"}]}`)
			return
		}
		var fields map[string]interface{}
		json.NewDecoder(r.Body).Decode(&fields)
		fields["id"] = f.id(strings.TrimSuffix(name, "s"))
		*items = append(*items, fields)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": fields})

	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/items/events/"):
		if f.failPatch {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"errors":[{"message":"write conflict"}]}`)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/items/events/")
		var patch map[string]interface{}
		json.NewDecoder(r.Body).Decode(&patch)
		f.patches = append(f.patches, patch)
		for _, evt := range f.events {
			if evt["id"] == id {
				for k, v := range patch {
					evt[k] = v
				}
				json.NewEncoder(w).Encode(map[string]interface{}{"data": evt})
				return
			}
		}
		http.NotFound(w, r)

	default:
		http.NotFound(w, r)
	}
}

// seedEvent inserts a stored event directly, bypassing the pipeline.
func (f *fakeStore) seedEvent(fields map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields["id"] = f.id("event")
	f.events = append(f.events, fields)
}

const feedItemTemplate = `<item>
<title>%s</title>
<link>%s</link>
<guid isPermaLink="false">%s</guid>
<description><![CDATA[%s]]></description>
</item>`

func rssFeed(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Calendar</title>
` + strings.Join(items, "\n") + `
</channel></rss>`
}

// testHarness wires a fake store, an event page server, an image server, and
// a feed server around an Engine.
type testHarness struct {
	store   *fakeStore
	engine  *Engine
	pageSrv *httptest.Server
	imgSrv  *httptest.Server
	feedSrv *httptest.Server
}

func newHarness(t *testing.T, feedXML func(h *testHarness) string) *testHarness {
	t.Helper()
	h := &testHarness{store: &fakeStore{}}

	storeSrv := httptest.NewServer(h.store)
	t.Cleanup(storeSrv.Close)

	h.pageSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<div class="field--name-field-website"><a href="https://rsvp.example.org/register">RSVP</a></div>`)
	}))
	t.Cleanup(h.pageSrv.Close)

	h.imgSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(h.imgSrv.Close)

	h.feedSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, feedXML(h))
	}))
	t.Cleanup(h.feedSrv.Close)

	cfg := &config.Config{
		StoreURL:    storeSrv.URL,
		Token:       "test-token",
		Feeds:       []config.FeedSource{{URL: h.feedSrv.URL, Label: "test-calendar", DisplayName: "Test Calendar"}},
		TagRules:    []config.TagRule{{Keyword: "community", TagName: "community"}},
		Delay:       0,
		HTTPTimeout: 5 * time.Second,
	}
	h.engine = New(cfg)
	return h
}

func (h *testHarness) futureItemContent() string {
	return fmt.Sprintf(`<p><img src="%s/flyer.png"></p>
<p>Join us for hack night.</p>
<blockquote>
🗓 Monday, January 26, 2032<br>
🕕 Time: 6:00 PM — 10:00 PM EST<br>
📍 Civic Hall<br>
118 West 22nd Street
</blockquote>
<p><a href="https://lu.ma/hack-night">Luma</a></p>`, h.imgSrv.URL)
}

func (h *testHarness) pastItemContent() string {
	return `<blockquote>
🗓 Monday, January 26, 2015<br>
Time: 6:00 PM — 10:00 PM EST
</blockquote>`
}

func standardFeed(h *testHarness) string {
	return rssFeed(
		fmt.Sprintf(feedItemTemplate, "Community Hack Night", h.pageSrv.URL+"/events/hack-night", "evt-1", h.futureItemContent()),
		fmt.Sprintf(feedItemTemplate, "Remembrance Gala", h.pageSrv.URL+"/events/gala", "evt-2", h.pastItemContent()),
		fmt.Sprintf(feedItemTemplate, "Broken Announcement", h.pageSrv.URL+"/events/broken", "evt-3", "<p>no details block</p>"),
	)
}

func TestRunEndToEndScenario(t *testing.T) {
	h := newHarness(t, standardFeed)

	summary := h.engine.Run(context.Background())

	want := Stats{Total: 3, Created: 1, Updated: 0, Skipped: 1, Failed: 1}
	if summary.Overall != want {
		t.Fatalf("overall = %+v, want %+v", summary.Overall, want)
	}
	if summary.RunID == "" {
		t.Error("run id should be set")
	}
	if len(summary.Feeds) != 1 || summary.Feeds[0].Stats != want {
		t.Errorf("feed results = %+v", summary.Feeds)
	}

	if len(h.store.events) != 1 {
		t.Fatalf("expected exactly 1 stored event, got %d", len(h.store.events))
	}
	evt := h.store.events[0]
	if evt["title"] != "Community Hack Night" {
		t.Errorf("title = %v", evt["title"])
	}
	if evt["status"] != "published" {
		t.Errorf("status = %v", evt["status"])
	}
	if evt["imported"] != true {
		t.Errorf("imported = %v", evt["imported"])
	}
	if evt["start_time"] != "2032-01-26T18:00:00" || evt["end_time"] != "2032-01-26T22:00:00" {
		t.Errorf("times = %v / %v", evt["start_time"], evt["end_time"])
	}
	if evt["rsvp_link"] != "https://rsvp.example.org/register" {
		t.Errorf("page scrape must win over the Luma link, got %v", evt["rsvp_link"])
	}
	if evt["parsed_venue_name"] != "Civic Hall" {
		t.Errorf("parsed_venue_name = %v", evt["parsed_venue_name"])
	}
	if evt["image"] == nil || evt["image"] == "" {
		t.Error("image should have been imported and linked")
	}
	if evt["venue"] == nil || evt["venue"] == "" {
		t.Error("venue should have been resolved")
	}
	if evt["tag"] == nil || evt["tag"] == "" {
		t.Error("community keyword should have resolved a tag")
	}
	if len(h.store.venues) != 1 {
		t.Errorf("expected 1 venue, got %d", len(h.store.venues))
	}
	if len(h.store.tags) != 1 {
		t.Errorf("expected 1 tag, got %d", len(h.store.tags))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, standardFeed)

	first := h.engine.Run(context.Background())
	if first.Overall.Created != 1 {
		t.Fatalf("first run should create, got %+v", first.Overall)
	}

	second := h.engine.Run(context.Background())
	if second.Overall.Created != 0 || second.Overall.Updated != 0 {
		t.Errorf("second run must not write: %+v", second.Overall)
	}
	if second.Overall.Skipped != 2 {
		t.Errorf("second run skipped = %d, want 2 (already_exists + past)", second.Overall.Skipped)
	}
	if len(h.store.events) != 1 {
		t.Errorf("at most one stored event per source link, got %d", len(h.store.events))
	}
	if len(h.store.patches) != 0 {
		t.Errorf("no back-fill patches expected, got %+v", h.store.patches)
	}
}

func TestBackfillNeverOverwrites(t *testing.T) {
	h := newHarness(t, func(h *testHarness) string {
		return rssFeed(fmt.Sprintf(feedItemTemplate,
			"Community Hack Night", h.pageSrv.URL+"/events/hack-night", "evt-1", h.futureItemContent()))
	})

	h.store.seedEvent(map[string]interface{}{
		"link":      h.pageSrv.URL + "/events/hack-night",
		"title":     "Community Hack Night",
		"image":     "existing-image",
		"rsvp_link": "https://existing.example.org/rsvp",
		"tag":       "existing-tag",
	})

	summary := h.engine.Run(context.Background())

	if summary.Overall.Updated != 0 || summary.Overall.Skipped != 1 {
		t.Errorf("fully populated record must be skipped: %+v", summary.Overall)
	}
	if len(h.store.patches) != 0 {
		t.Errorf("populated fields must never be patched, got %+v", h.store.patches)
	}
	if h.store.events[0]["image"] != "existing-image" {
		t.Errorf("image overwritten: %v", h.store.events[0]["image"])
	}
}

func TestBackfillFillsOnlyEmptyFields(t *testing.T) {
	h := newHarness(t, func(h *testHarness) string {
		return rssFeed(fmt.Sprintf(feedItemTemplate,
			"Community Hack Night", h.pageSrv.URL+"/events/hack-night", "evt-1", h.futureItemContent()))
	})

	h.store.seedEvent(map[string]interface{}{
		"link":  h.pageSrv.URL + "/events/hack-night",
		"title": "Community Hack Night",
		"image": "existing-image",
	})

	summary := h.engine.Run(context.Background())

	if summary.Overall.Updated != 1 {
		t.Fatalf("expected an update, got %+v", summary.Overall)
	}
	if len(h.store.patches) != 1 {
		t.Fatalf("expected one patch, got %+v", h.store.patches)
	}
	patch := h.store.patches[0]
	if _, touched := patch["image"]; touched {
		t.Error("populated image must not appear in the patch")
	}
	if patch["rsvp_link"] != "https://rsvp.example.org/register" {
		t.Errorf("rsvp_link back-fill missing: %+v", patch)
	}
	if patch["tag"] == nil || patch["tag"] == "" {
		t.Errorf("tag back-fill missing: %+v", patch)
	}
}

func TestUpdateFailureReportedAsSkipped(t *testing.T) {
	h := newHarness(t, func(h *testHarness) string {
		return rssFeed(fmt.Sprintf(feedItemTemplate,
			"Community Hack Night", h.pageSrv.URL+"/events/hack-night", "evt-1", h.futureItemContent()))
	})
	h.store.seedEvent(map[string]interface{}{
		"link":  h.pageSrv.URL + "/events/hack-night",
		"title": "Community Hack Night",
	})
	h.store.failPatch = true

	summary := h.engine.Run(context.Background())

	if summary.Overall.Failed != 0 {
		t.Errorf("update failure must not escalate to a hard failure: %+v", summary.Overall)
	}
	if summary.Overall.Skipped != 1 {
		t.Errorf("expected skipped, got %+v", summary.Overall)
	}
}

func TestCreateFailureFailsItem(t *testing.T) {
	h := newHarness(t, func(h *testHarness) string {
		return rssFeed(fmt.Sprintf(feedItemTemplate,
			"Community Hack Night", h.pageSrv.URL+"/events/hack-night", "evt-1", h.futureItemContent()))
	})
	h.store.failCreate = true

	summary := h.engine.Run(context.Background())

	if summary.Overall.Failed != 1 || summary.Overall.Created != 0 {
		t.Errorf("rejected create must fail the item: %+v", summary.Overall)
	}
}

func TestFeedFetchFailureIsConfinedToFeed(t *testing.T) {
	h := newHarness(t, standardFeed)

	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(deadSrv.Close)

	h.engine.cfg.Feeds = append([]config.FeedSource{
		{URL: deadSrv.URL, Label: "dead-feed", DisplayName: "Dead Feed"},
	}, h.engine.cfg.Feeds...)

	summary := h.engine.Run(context.Background())

	if len(summary.Feeds) != 2 {
		t.Fatalf("expected 2 feed results, got %d", len(summary.Feeds))
	}
	if summary.Feeds[0].Error == "" {
		t.Error("dead feed should record an error note")
	}
	if summary.Feeds[0].Stats.Total != 0 {
		t.Errorf("dead feed should have zero results, got %+v", summary.Feeds[0].Stats)
	}
	if summary.Feeds[1].Stats.Created != 1 {
		t.Errorf("healthy feed must still run: %+v", summary.Feeds[1].Stats)
	}
}

func TestPastEventNeverCreated(t *testing.T) {
	h := newHarness(t, func(h *testHarness) string {
		return rssFeed(fmt.Sprintf(feedItemTemplate,
			"Well-Formed But Gone", h.pageSrv.URL+"/events/gone", "evt-1", h.pastItemContent()))
	})

	summary := h.engine.Run(context.Background())

	if summary.Overall.Skipped != 1 || summary.Overall.Created != 0 {
		t.Errorf("past event must be skipped: %+v", summary.Overall)
	}
	if len(h.store.events) != 0 {
		t.Errorf("past event must produce no store writes, got %+v", h.store.events)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	h := newHarness(t, standardFeed)
	h.engine.cfg.DryRun = true
	// The engine's store client is built from cfg at New time, so rebuild.
	h.engine = New(h.engine.cfg)

	summary := h.engine.Run(context.Background())

	if summary.Overall.Created != 1 {
		t.Errorf("dry run should still report what would be created: %+v", summary.Overall)
	}
	if len(h.store.events) != 0 || len(h.store.venues) != 0 || len(h.store.tags) != 0 {
		t.Error("dry run must not write to the store")
	}
}
