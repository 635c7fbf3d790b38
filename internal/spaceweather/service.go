package spaceweather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/sunflux/internal/logging"
)

// Feed is a record feed together with its default view.
type Feed struct {
	Name  string
	Title string
	Cache *Cache[Sequence]
	View  View
}

// Image is a cached station image.
type Image struct {
	Name    string
	Caption string
	Cache   *Cache[[]byte]
}

// FeedStatus describes the cache state of one feed.
type FeedStatus struct {
	Name         string     `json:"name"`
	Kind         string     `json:"kind"`
	Title        string     `json:"title,omitempty"`
	TTL          string     `json:"ttl"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Stale        bool       `json:"stale"`
}

type syncer interface {
	Name() string
	Sync(ctx context.Context) (bool, error)
}

// Service is the entry point for consumers: it hands out windowed,
// ordered copies of each feed and keeps the caches fresh.
type Service struct {
	feeds  map[string]*Feed
	images map[string]*Image
	names  []string
	all    []syncer

	now func() time.Time
	log *slog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock sets the clock used to anchor default views.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithServiceLogger replaces the component logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// NewService creates a new Service.
func NewService(feeds []*Feed, images []*Image, opts ...ServiceOption) *Service {
	s := &Service{
		feeds:  make(map[string]*Feed, len(feeds)),
		images: make(map[string]*Image, len(images)),
		now:    time.Now,
	}
	for _, f := range feeds {
		s.feeds[f.Name] = f
		s.names = append(s.names, f.Name)
		s.all = append(s.all, f.Cache)
	}
	for _, img := range images {
		s.images[img.Name] = img
		s.names = append(s.names, img.Name)
		s.all = append(s.all, img.Cache)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component("service")
	}
	return s
}

func (s *Service) feed(name string) (*Feed, error) {
	f, ok := s.feeds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, name)
	}
	return f, nil
}

// DefaultWindow returns the feed's view anchored on the current time.
func (s *Service) DefaultWindow(name string) (Window, error) {
	f, err := s.feed(name)
	if err != nil {
		return Window{}, err
	}
	return f.View.At(s.now()), nil
}

// Records returns the part of the feed inside w, or inside the feed's
// default view when w is nil. An empty result is ErrNoData.
func (s *Service) Records(ctx context.Context, name string, w *Window) (Sequence, error) {
	f, err := s.feed(name)
	if err != nil {
		return nil, err
	}

	seq := f.Cache.Get(ctx)

	win := f.View.At(s.now())
	if w != nil {
		win = *w
	}
	out := win.Select(seq)
	if len(out) == 0 {
		if len(seq) == 0 {
			s.log.Warn("no data to display: cache empty", "feed", name)
		} else {
			s.log.Info("no data to display: none in window", "feed", name, "cached", len(seq),
				"start", win.Start, "end", win.End)
		}
		return nil, ErrNoData
	}
	return out, nil
}

// Latest returns the most recent record of a feed.
func (s *Service) Latest(ctx context.Context, name string) (Record, error) {
	f, err := s.feed(name)
	if err != nil {
		return Record{}, err
	}
	r, ok := f.Cache.Get(ctx).Last()
	if !ok {
		return Record{}, ErrNoData
	}
	return r, nil
}

// Image returns the cached bytes of a station image.
func (s *Service) Image(ctx context.Context, name string) ([]byte, *Image, error) {
	img, ok := s.images[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFeed, name)
	}
	data := img.Cache.Get(ctx)
	if len(data) == 0 {
		return nil, img, ErrNoData
	}
	return data, img, nil
}

// IsImage reports whether name is an image feed.
func (s *Service) IsImage(name string) bool {
	_, ok := s.images[name]
	return ok
}

// Refresh forces a refresh of one feed regardless of its age.
func (s *Service) Refresh(ctx context.Context, name string) error {
	if f, ok := s.feeds[name]; ok {
		return f.Cache.Refresh(ctx)
	}
	if img, ok := s.images[name]; ok {
		return img.Cache.Refresh(ctx)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFeed, name)
}

// Sync refreshes every stale feed concurrently. Failures are logged and
// returned joined; they never affect the data already cached.
func (s *Service) Sync(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, c := range s.all {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()

			refreshed, err := c.Sync(ctx)
			if err != nil {
				s.log.Error("sync failed; keeping last good data", "feed", c.Name(), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			if refreshed {
				s.log.Debug("synced", "feed", c.Name())
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Status lists every feed with its cache state, sorted by name.
func (s *Service) Status() []FeedStatus {
	out := make([]FeedStatus, 0, len(s.names))
	for _, name := range s.names {
		var st FeedStatus
		if f, ok := s.feeds[name]; ok {
			st = status(name, "records", f.Title, f.Cache.TTL(), f.Cache.LastModified(), f.Cache.Stale())
		} else {
			img := s.images[name]
			st = status(name, "image", img.Caption, img.Cache.TTL(), img.Cache.LastModified(), img.Cache.Stale())
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func status(name, kind, title string, ttl time.Duration, mod time.Time, stale bool) FeedStatus {
	st := FeedStatus{
		Name:  name,
		Kind:  kind,
		Title: title,
		TTL:   ttl.String(),
		Stale: stale,
	}
	if !mod.IsZero() {
		m := mod.UTC()
		st.LastModified = &m
	}
	return st
}
