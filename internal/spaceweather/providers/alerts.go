package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// AlertsURL lists NOAA SWPC's recent alerts, watches and warnings.
const AlertsURL = "https://services.swpc.noaa.gov/products/alerts.json"

// AlertsProvider reads the NOAA alert bulletins. Each record holds the
// product id in Label and the bulletin in Text, keyed by issue time.
type AlertsProvider struct {
	name    string
	url     string
	fetcher *Fetcher
	log     *slog.Logger
}

func NewAlertsProvider(fetcher *Fetcher, url string) *AlertsProvider {
	if url == "" {
		url = AlertsURL
	}
	return &AlertsProvider{
		name:    "alerts",
		url:     url,
		fetcher: fetcher,
		log:     logging.Component("provider").With("feed", "alerts"),
	}
}

func (p *AlertsProvider) Name() string {
	return p.name
}

func (p *AlertsProvider) Fetch(ctx context.Context) (spaceweather.Sequence, error) {
	p.log.Info("downloading alerts from NOAA", "url", p.url)

	payload, err := p.fetcher.Get(ctx, p.url)
	if err != nil {
		return nil, err
	}
	text, err := payload.Text()
	if err != nil {
		return nil, err
	}

	batch, err := ParseAlerts([]byte(text))
	if err != nil {
		return nil, &spaceweather.DecodeError{URL: p.url, Err: err}
	}
	logDropped(p.log, batch)
	return batch.Records, nil
}

type alertItem struct {
	ProductID     string `json:"product_id"`
	IssueDatetime string `json:"issue_datetime"`
	Message       string `json:"message"`
}

// ParseAlerts normalizes the alerts payload. issue_datetime carries
// fractional seconds ("2024-03-01 12:00:00.123"), which the layout accepts.
func ParseAlerts(data []byte) (spaceweather.Batch, error) {
	var items []alertItem
	if err := json.Unmarshal(data, &items); err != nil {
		return spaceweather.Batch{}, err
	}

	var batch spaceweather.Batch
	for i, it := range items {
		ts, err := time.Parse(noaaTimeLayout, strings.TrimSpace(it.IssueDatetime))
		if err != nil {
			batch.Add(i, it.IssueDatetime, spaceweather.Record{}, fmt.Errorf("issue_datetime: %w", err))
			continue
		}
		batch.Add(i, it.IssueDatetime, spaceweather.Record{
			Time:  ts.UTC(),
			Label: it.ProductID,
			Text:  strings.TrimSpace(it.Message),
		}, nil)
	}
	return batch, nil
}
