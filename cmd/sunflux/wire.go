package main

import (
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/i474232898/sunflux/internal/config"
	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
	"github.com/i474232898/sunflux/internal/spaceweather/providers"
	"github.com/i474232898/sunflux/internal/store"
)

const day = 24 * time.Hour

// feedSpec binds a record provider to its configuration and default view.
type feedSpec struct {
	title  string
	cfg    config.FeedConfig
	source spaceweather.Source[spaceweather.Sequence]
	view   spaceweather.View
}

// buildService wires providers, stores and caches from the configuration.
func buildService(cfg *config.AppConfig, client *http.Client) *spaceweather.Service {
	fetcher := func(name string) *providers.Fetcher {
		return providers.NewFetcher(client, name, cfg.UserAgent)
	}

	specs := []feedSpec{
		{
			title:  "Planetary K-Index",
			cfg:    cfg.KpForecast,
			source: providers.NewKpForecastProvider(fetcher("kpforecast"), cfg.KpForecast.URL),
			view:   spaceweather.View{Lookback: 3*day + 4*time.Hour, Lookahead: day + 6*time.Hour},
		},
		{
			title:  "Sunspot Number",
			cfg:    cfg.Sunspot,
			source: providers.NewSunspotProvider(fetcher("ssn"), cfg.Sunspot.URL),
			view:   spaceweather.View{Lookback: 100 * day, Lookahead: day},
		},
		{
			title:  "Space Weather Alerts",
			cfg:    cfg.Alerts,
			source: providers.NewAlertsProvider(fetcher("alerts"), cfg.Alerts.URL),
			view:   spaceweather.View{Lookback: 7 * day, Lookahead: time.Minute},
		},
	}

	feeds := make([]*spaceweather.Feed, 0, len(specs))
	for _, s := range specs {
		retention := spaceweather.Retention{MaxEntries: s.cfg.Retain, MaxAge: s.cfg.MaxAge.D()}
		feeds = append(feeds, &spaceweather.Feed{
			Name:  s.source.Name(),
			Title: s.title,
			Cache: spaceweather.NewCache[spaceweather.Sequence](
				s.source,
				newStore[spaceweather.Sequence](cfg, s.cfg.CacheFile, store.SequenceCodec{}),
				spaceweather.Staleness{TTL: s.cfg.CacheTime.D(), Now: time.Now},
				retention.MergeFunc(time.Now),
			),
			View: s.view,
		})
	}

	var images []*spaceweather.Image
	for _, spec := range imageSpecs(cfg.Images) {
		p := providers.NewImageProvider(fetcher(spec.Name), cfg.Images.BaseURL, spec)
		path := filepath.Join(cfg.Images.CacheDir, spec.Name+filepath.Ext(spec.Path))
		images = append(images, &spaceweather.Image{
			Name:    spec.Name,
			Caption: spec.Caption,
			Cache: spaceweather.NewCache[[]byte](
				p,
				newStore[[]byte](cfg, path, store.RawCodec{}),
				spaceweather.Staleness{TTL: cfg.Images.CacheTime.D(), Now: time.Now},
				spaceweather.ReplaceImage,
			),
		})
	}

	return spaceweather.NewService(feeds, images)
}

func newStore[T any](cfg *config.AppConfig, path string, codec store.Codec[T]) spaceweather.Store[T] {
	if cfg.CacheBackend == "memory" {
		return store.NewMemory[T](codec)
	}
	return store.NewFile[T](path, codec)
}

// imageSpecs applies the configured sources on top of the default images.
// Unknown names add an image captioned with its name.
func imageSpecs(cfg config.ImagesConfig) []providers.ImageSpec {
	byName := make(map[string]providers.ImageSpec, len(providers.DefaultImages))
	for _, spec := range providers.DefaultImages {
		byName[spec.Name] = spec
	}
	for name, path := range cfg.Sources {
		spec, ok := byName[name]
		if !ok {
			spec = providers.ImageSpec{Name: name, Caption: name}
		}
		spec.Path = path
		byName[name] = spec
	}

	out := make([]providers.ImageSpec, 0, len(byName))
	for _, spec := range byName {
		if spec.Path == "" {
			logging.Component("main").Warn("image has no path; skipped", "image", spec.Name)
			continue
		}
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
