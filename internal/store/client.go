package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dghubble/sling"

	"github.com/civichall/event-importer/internal/logger"
)

const (
	// UserAgent identifies the importer to the content store.
	UserAgent = "event-importer/1.0 (github.com/civichall/event-importer)"

	// readRetries bounds the backoff retries on store reads. Writes are
	// never retried; the caller decides whether a write failure is fatal.
	readRetries = 2
)

// Client talks to the content store's REST JSON API with one process-wide
// bearer credential. In dry-run mode every write is logged and skipped.
type Client struct {
	base   *sling.Sling
	dryRun bool
}

// New creates a content store client. Every call is bounded by timeout.
func New(baseURL, token string, timeout time.Duration, dryRun bool) *Client {
	httpClient := &http.Client{Timeout: timeout}
	base := sling.New().
		Client(httpClient).
		Base(strings.TrimSuffix(baseURL, "/") + "/").
		Set("Authorization", "Bearer "+token).
		Set("User-Agent", UserAgent)

	return &Client{base: base, dryRun: dryRun}
}

// DryRun reports whether writes are being skipped.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// Filter is an exact-match field filter for list queries.
type Filter map[string]string

func (f Filter) query(limit int) string {
	v := url.Values{}
	for field, val := range f {
		v.Set(fmt.Sprintf("filter[%s][_eq]", field), val)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v.Encode()
}

// APIError carries a non-2xx store response, with the error payload parsed
// as JSON where possible so callers can log it verbatim.
type APIError struct {
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("content store error (status %d): %s", e.Status, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("content store error (status %d)", e.Status)
}

// apiErrorBody is the store's error envelope.
type apiErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// envelope is the store's success envelope.
type envelope[T any] struct {
	Data T `json:"data"`
}

// do executes one request, decoding a 2xx body into successV and turning any
// other response into an *APIError.
func (c *Client) do(ctx context.Context, s *sling.Sling, successV interface{}) error {
	req, err := s.Request()
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req = req.WithContext(ctx)

	var failure apiErrorBody
	resp, err := c.base.Do(req, successV, &failure)
	if resp != nil && resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		for _, detail := range failure.Errors {
			apiErr.Messages = append(apiErr.Messages, detail.Message)
		}
		return apiErr
	}
	if err != nil {
		return fmt.Errorf("content store request: %w", err)
	}
	return nil
}

// listItems queries one collection with exact-match filters, retrying
// transient failures (network errors, 5xx) with bounded backoff.
func listItems[T any](ctx context.Context, c *Client, collection string, filter Filter, limit int) ([]T, error) {
	path := "items/" + collection + "?" + filter.query(limit)

	var out envelope[[]T]
	op := func() error {
		out = envelope[[]T]{}
		err := c.do(ctx, c.base.New().Get(path), &out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), readRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func createItem[F, T any](ctx context.Context, c *Client, collection string, fields F) (*T, error) {
	if c.dryRun {
		logger.Info("dry run: skipping create", logger.Fields{"collection": collection})
		return new(T), nil
	}

	var out envelope[T]
	if err := c.do(ctx, c.base.New().Post("items/"+collection).BodyJSON(fields), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListEvents returns events matching the filter, up to limit.
func (c *Client) ListEvents(ctx context.Context, filter Filter, limit int) ([]EventRecord, error) {
	return listItems[EventRecord](ctx, c, CollectionEvents, filter, limit)
}

// ListVenues returns venues matching the filter, up to limit.
func (c *Client) ListVenues(ctx context.Context, filter Filter, limit int) ([]VenueRecord, error) {
	return listItems[VenueRecord](ctx, c, CollectionVenues, filter, limit)
}

// ListTags returns tags matching the filter, up to limit.
func (c *Client) ListTags(ctx context.Context, filter Filter, limit int) ([]TagRecord, error) {
	return listItems[TagRecord](ctx, c, CollectionTags, filter, limit)
}

// CreateEvent creates a stored event with all fields populated up front.
func (c *Client) CreateEvent(ctx context.Context, fields EventFields) (*EventRecord, error) {
	return createItem[EventFields, EventRecord](ctx, c, CollectionEvents, fields)
}

// CreateVenue creates a venue record.
func (c *Client) CreateVenue(ctx context.Context, fields VenueFields) (*VenueRecord, error) {
	return createItem[VenueFields, VenueRecord](ctx, c, CollectionVenues, fields)
}

// CreateTag creates a tag record.
func (c *Client) CreateTag(ctx context.Context, fields TagFields) (*TagRecord, error) {
	return createItem[TagFields, TagRecord](ctx, c, CollectionTags, fields)
}

// UpdateEvent applies a sparse patch to an existing event. Only the fields
// present in patch are touched.
func (c *Client) UpdateEvent(ctx context.Context, id string, patch map[string]interface{}) error {
	if c.dryRun {
		logger.Info("dry run: skipping update", logger.Fields{
			"collection": CollectionEvents,
			"id":         id,
		})
		return nil
	}

	var out envelope[EventRecord]
	return c.do(ctx, c.base.New().Patch("items/"+CollectionEvents+"/"+id).BodyJSON(patch), &out)
}

// UploadFile submits binary data as a multipart upload and returns the
// stored file.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename, contentType string) (*FileRecord, error) {
	if c.dryRun {
		logger.Info("dry run: skipping file upload", logger.Fields{"filename": filename})
		return &FileRecord{}, nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	var out envelope[FileRecord]
	s := c.base.New().Post("files").Body(body).Set("Content-Type", writer.FormDataContentType())
	if err := c.do(ctx, s, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
