// Package assets imports remote images into the content store.
//
// An asset import is best-effort: any failure to download or upload is
// absorbed with a warning and the event proceeds without an image.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/civichall/event-importer/internal/logger"
	"github.com/civichall/event-importer/internal/store"
)

const (
	fallbackFilename    = "event-image"
	fallbackContentType = "image/jpeg"

	// maxImageBytes caps the download buffer; feed flyers are small.
	maxImageBytes = 20 << 20
)

// Importer downloads remote images and re-uploads them to the content store.
type Importer struct {
	client *http.Client
	store  *store.Client
}

// NewImporter creates an asset importer with a bounded download timeout.
func NewImporter(storeClient *store.Client, timeout time.Duration) *Importer {
	return &Importer{
		client: &http.Client{Timeout: timeout},
		store:  storeClient,
	}
}

// Import fetches the image at imageURL and uploads it to the content store,
// returning the stored file id. Any failure returns an empty id; this step
// never fails the item.
func (i *Importer) Import(ctx context.Context, imageURL string) string {
	if imageURL == "" {
		return ""
	}

	data, contentType, err := i.download(ctx, imageURL)
	if err != nil {
		logger.Warn("image download failed", logger.Fields{
			"url":   imageURL,
			"error": err.Error(),
		})
		return ""
	}

	file, err := i.store.UploadFile(ctx, data, filenameFrom(imageURL), contentType)
	if err != nil {
		logger.Warn("image upload failed", logger.Fields{
			"url":   imageURL,
			"error": err.Error(),
		})
		return ""
	}

	return file.ID
}

func (i *Importer) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", store.UserAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = fallbackContentType
	}

	return data, contentType, nil
}

// filenameFrom derives an upload filename from the URL's last path segment.
func filenameFrom(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return fallbackFilename
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallbackFilename
	}
	return name
}
