package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i474232898/sunflux/internal/common"
	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// NOAABaseURL is the root the station image paths are relative to.
const NOAABaseURL = "https://services.swpc.noaa.gov/"

var errNotImage = errors.New("response is not an image")

// ImageSpec names a station image and where it lives under the base URL.
type ImageSpec struct {
	Name    string
	Path    string
	Caption string
}

// DefaultImages are the NOAA images served by the bot.
var DefaultImages = []ImageSpec{
	{Name: "ai", Path: "images/station-a-index.png", Caption: "A Index"},
	{Name: "geost", Path: "images/geospace/geospace_7_day.png", Caption: "Geospace timeline"},
	{Name: "ki", Path: "images/station-k-index.png", Caption: "K Index"},
	{Name: "swx", Path: "images/swx-overview-large.gif", Caption: "Space weather indices"},
	{Name: "tec", Path: "images/animations/ctipe/tec/latest.png", Caption: "Total Electron Content"},
	{Name: "swo", Path: "images/swx-overview-large.gif", Caption: "Space weather indices overview"},
	{Name: "warn", Path: "images/notifications-timeline.png", Caption: "Space weather warning timelines"},
}

// ImageProvider downloads one station image as raw bytes.
type ImageProvider struct {
	name    string
	url     string
	fetcher *Fetcher
	log     *slog.Logger
}

func NewImageProvider(fetcher *Fetcher, baseURL string, spec ImageSpec) *ImageProvider {
	if baseURL == "" {
		baseURL = NOAABaseURL
	}
	url := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(spec.Path, "/")
	return &ImageProvider{
		name:    spec.Name,
		url:     url,
		fetcher: fetcher,
		log:     logging.Component("provider").With("feed", spec.Name),
	}
}

func (p *ImageProvider) Name() string {
	return p.name
}

// URL returns the image location.
func (p *ImageProvider) URL() string {
	return p.url
}

func (p *ImageProvider) Fetch(ctx context.Context) ([]byte, error) {
	p.log.Info("downloading image", "url", p.url)

	payload, err := p.fetcher.Get(ctx, p.url)
	if err != nil {
		return nil, err
	}

	ct := strings.ToLower(payload.ContentType)
	if ct != "" && !common.HasAny(ct, "image/", "application/octet-stream") {
		return nil, &spaceweather.DecodeError{URL: p.url, Err: fmt.Errorf("%w: %s", errNotImage, payload.ContentType)}
	}
	return payload.Body, nil
}
