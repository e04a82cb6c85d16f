package enrich

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func pngPayload(size int) []byte {
	data := make([]byte, size)
	copy(data, pngMagic)
	return data
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Write(pngPayload(500))
		case "/icon.png":
			w.Write(pngPayload(5))
		case "/huge.png":
			w.Write(pngPayload(5000))
		case "/page.html":
			w.Write(bytes.Repeat([]byte("<html>not an image</html>"), 20))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchGates(t *testing.T) {
	srv := imageServer(t)
	d := NewDownloader(time.Second, 100, 1000, testLogger())
	ctx := context.Background()

	got, err := d.Fetch(ctx, srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.MediaType != "image/png" {
		t.Errorf("Expected image/png, got %s", got.MediaType)
	}
	if len(got.Data) != 500 {
		t.Errorf("Expected 500 bytes, got %d", len(got.Data))
	}

	tests := []struct {
		name string
		path string
	}{
		{"too small", "/icon.png"},
		{"too large", "/huge.png"},
		{"not an image", "/page.html"},
		{"missing", "/gone.png"},
	}
	for _, tt := range tests {
		if _, err := d.Fetch(ctx, srv.URL+tt.path); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestFetchAllPreservesOrderAndDropsFailures(t *testing.T) {
	srv := imageServer(t)
	d := NewDownloader(time.Second, 100, 1000, testLogger())

	fetched := d.FetchAll(context.Background(), []string{
		srv.URL + "/photo.png",
		srv.URL + "/icon.png",
		srv.URL + "/photo.png",
	})
	if len(fetched) != 2 {
		t.Fatalf("Expected 2 survivors, got %d", len(fetched))
	}
	for i, f := range fetched {
		if f.URL != srv.URL+"/photo.png" {
			t.Errorf("Survivor %d: expected the valid photo, got %s", i, f.URL)
		}
	}
}

func TestDownloadsConversion(t *testing.T) {
	fetched := []*Fetched{
		{URL: "https://a.example/x.jpg", MediaType: "image/jpeg", Data: make([]byte, 42)},
	}
	out := Downloads(fetched)
	if len(out) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(out))
	}
	if out[0].URL != "https://a.example/x.jpg" || out[0].MediaType != "image/jpeg" || out[0].Size != 42 {
		t.Errorf("Expected the record converted, got %+v", out[0])
	}
}
