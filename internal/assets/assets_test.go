package assets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civichall/event-importer/internal/store"
)

func newImporter(t *testing.T, storeHandler http.Handler) *Importer {
	t.Helper()
	srv := httptest.NewServer(storeHandler)
	t.Cleanup(srv.Close)
	return NewImporter(store.New(srv.URL, "tok", 5*time.Second, false), 5*time.Second)
}

func TestImportSuccess(t *testing.T) {
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer imageSrv.Close()

	imp := newImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("expected multipart upload: %v", err)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("no file part: %v", err)
		}
		if header.Filename != "flyer.png" {
			t.Errorf("filename = %q, want flyer.png", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"id":"f1"}}`)
	}))

	id := imp.Import(context.Background(), imageSrv.URL+"/media/flyer.png")
	if id != "f1" {
		t.Errorf("Import = %q, want f1", id)
	}
}

func TestImportEmptyURL(t *testing.T) {
	imp := newImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty URL must not hit the store")
	}))

	if id := imp.Import(context.Background(), ""); id != "" {
		t.Errorf("Import = %q, want empty", id)
	}
}

func TestImportDownloadFailureAbsorbed(t *testing.T) {
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer imageSrv.Close()

	imp := newImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("failed download must not reach the store")
	}))

	if id := imp.Import(context.Background(), imageSrv.URL+"/gone.png"); id != "" {
		t.Errorf("Import = %q, want empty on download failure", id)
	}
}

func TestImportUploadFailureAbsorbed(t *testing.T) {
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer imageSrv.Close()

	imp := newImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInsufficientStorage)
		io.WriteString(w, `{"errors":[{"message":"disk full"}]}`)
	}))

	if id := imp.Import(context.Background(), imageSrv.URL+"/flyer.png"); id != "" {
		t.Errorf("Import = %q, want empty on upload failure", id)
	}
}

func TestFilenameFrom(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.org/media/flyer.png", "flyer.png"},
		{"https://cdn.example.org/", "event-image"},
		{"https://cdn.example.org", "event-image"},
	}
	for _, tt := range tests {
		if got := filenameFrom(tt.url); got != tt.want {
			t.Errorf("filenameFrom(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
