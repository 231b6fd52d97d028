package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Image is a downloaded image payload
type Image struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Fetcher validates and downloads remote images
type Fetcher interface {
	// ProbeImage reports whether the URL answers with an image. Only a
	// 200 response with an image/* content type counts.
	ProbeImage(ctx context.Context, imageURL string) bool
	FetchImage(ctx context.Context, imageURL string) (*Image, error)
}

// HTTPFetcher implements Fetcher over HTTP
type HTTPFetcher struct {
	client *resty.Client
	logger *logrus.Entry
}

// NewHTTPFetcher creates a new image fetcher
func NewHTTPFetcher(logger *logrus.Logger) *HTTPFetcher {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &HTTPFetcher{
		client: client,
		logger: logger.WithField("component", "media_fetcher"),
	}
}

// Close releases the underlying HTTP client
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}

// ProbeImage checks the URL with a HEAD request before committing to a download
func (f *HTTPFetcher) ProbeImage(ctx context.Context, imageURL string) bool {
	resp, err := f.client.R().
		SetContext(ctx).
		Head(imageURL)
	if err != nil {
		f.logger.WithError(err).WithField("url", imageURL).Debug("Image probe failed")
		return false
	}
	if resp.StatusCode() != 200 {
		return false
	}
	return strings.HasPrefix(resp.Header().Get("Content-Type"), "image/")
}

// FetchImage downloads the image at the URL
func (f *HTTPFetcher) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("image request returned status %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unexpected content type %q for image", contentType)
	}

	return &Image{
		Data:        resp.Bytes(),
		ContentType: contentType,
		FileName:    FileNameFromURL(imageURL),
	}, nil
}

// FileNameFromURL derives a usable file name from an image URL
func FileNameFromURL(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return "image.jpg"
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return "image.jpg"
	}
	return name
}
