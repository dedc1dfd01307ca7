package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/StoreScope/internal/parser"
)

// DefaultMaxImages caps images attached to one multimodal request.
const DefaultMaxImages = 10

const (
	imageUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36"
	maxImageBytes  = 8 << 20
)

// Image is a downloaded picture ready for inline submission.
type Image struct {
	URL       string
	MediaType string
	Data      string // base64
}

// DataURI returns the image as a data: URI.
func (i *Image) DataURI() string {
	return "data:" + i.MediaType + ";base64," + i.Data
}

// SanitizeImageURLs keeps http(s) and protocol-relative links, upgrades
// them to https, drops duplicates and returns at most max of them.
func SanitizeImageURLs(urls []string, max int) []string {
	if max <= 0 {
		max = DefaultMaxImages
	}
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		u = parser.HTTPSURL(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == max {
			break
		}
	}
	return out
}

// ImageFetcher downloads images for providers that need inline data.
// Downloads share one rate limiter.
type ImageFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewImageFetcher creates a fetcher. perSecond <= 0 disables limiting.
func NewImageFetcher(client *http.Client, perSecond float64, logger *slog.Logger) *ImageFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &ImageFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "image_fetcher"),
	}
}

// Fetch downloads one image.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", imageUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image %s: HTTP %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("image %s: empty body", rawURL)
	}
	return &Image{
		URL:       rawURL,
		MediaType: mediaType(resp.Header.Get("Content-Type"), rawURL),
		Data:      base64.StdEncoding.EncodeToString(body),
	}, nil
}

// FetchAll downloads urls in order. Failed downloads leave a nil entry so
// the result lines up with urls.
func (f *ImageFetcher) FetchAll(ctx context.Context, urls []string) []*Image {
	out := make([]*Image, len(urls))
	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		img, err := f.Fetch(ctx, u)
		if err != nil {
			f.logger.Debug("image download failed", "url", u, "error", err)
			continue
		}
		out[i] = img
	}
	return out
}

// mediaType picks the image type from the response header, then the URL
// extension, defaulting to JPEG.
func mediaType(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/jpeg", "image/png", "image/gif", "image/webp":
			return mt
		case "image/jpg":
			return "image/jpeg"
		}
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "image/jpeg"
}
