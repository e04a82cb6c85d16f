package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/serviceseeking/onboard/internal/engine"
)

// Downloader fetches candidate images and gates them on byte size and
// sniffed media type before they reach the vision classifier.
type Downloader struct {
	http     *http.Client
	logger   *slog.Logger
	minBytes int
	maxBytes int
}

func NewDownloader(timeout time.Duration, minBytes, maxBytes int, logger *slog.Logger) *Downloader {
	return &Downloader{
		http:     newHTTPClient(timeout),
		logger:   logger,
		minBytes: minBytes,
		maxBytes: maxBytes,
	}
}

// Fetched is one downloaded image that passed the gates.
type Fetched struct {
	URL       string
	MediaType string
	Data      []byte
}

// Fetch downloads one candidate. Images below the minimum size (icons,
// trackers) or above the maximum (originals too big to classify) are
// rejected, as is anything that does not sniff as an image.
func (d *Downloader) Fetch(ctx context.Context, imageURL string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) < d.minBytes {
		return nil, fmt.Errorf("image too small: %d bytes", len(data))
	}
	if len(data) > d.maxBytes {
		return nil, fmt.Errorf("image too large: over %d bytes", d.maxBytes)
	}

	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("not an image: %s", mediaType)
	}
	return &Fetched{URL: imageURL, MediaType: mediaType, Data: data}, nil
}

// FetchAll downloads candidates concurrently, preserving input order in the
// result and silently dropping failures.
func (d *Downloader) FetchAll(ctx context.Context, urls []string) []*Fetched {
	results := make([]*Fetched, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			f, err := d.Fetch(ctx, u)
			if err != nil {
				d.logger.Debug("image candidate rejected", "url", u, "error", err)
				return
			}
			results[i] = f
		}(i, u)
	}
	wg.Wait()

	var fetched []*Fetched
	for _, f := range results {
		if f != nil {
			fetched = append(fetched, f)
		}
	}
	return fetched
}

// Downloads converts fetched images to the scorer's download records.
func Downloads(fetched []*Fetched) []engine.Download {
	out := make([]engine.Download, 0, len(fetched))
	for _, f := range fetched {
		out = append(out, engine.Download{
			URL:       f.URL,
			MediaType: f.MediaType,
			Size:      len(f.Data),
		})
	}
	return out
}
