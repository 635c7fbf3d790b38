package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// KpForecastURL is NOAA SWPC's planetary K-index forecast.
const KpForecastURL = "https://services.swpc.noaa.gov/products/noaa-planetary-k-index-forecast.json"

const noaaTimeLayout = "2006-01-02 15:04:05"

var errShortRow = errors.New("not enough fields")

// KpForecastProvider reads the 3-hourly Kp observations, estimates and
// predictions.
type KpForecastProvider struct {
	name    string
	url     string
	fetcher *Fetcher
	log     *slog.Logger
}

func NewKpForecastProvider(fetcher *Fetcher, url string) *KpForecastProvider {
	if url == "" {
		url = KpForecastURL
	}
	return &KpForecastProvider{
		name:    "kpforecast",
		url:     url,
		fetcher: fetcher,
		log:     logging.Component("provider").With("feed", "kpforecast"),
	}
}

func (p *KpForecastProvider) Name() string {
	return p.name
}

func (p *KpForecastProvider) Fetch(ctx context.Context) (spaceweather.Sequence, error) {
	p.log.Info("downloading data from NOAA", "url", p.url)

	payload, err := p.fetcher.Get(ctx, p.url)
	if err != nil {
		return nil, err
	}
	text, err := payload.Text()
	if err != nil {
		return nil, err
	}

	batch, err := ParseKpForecast([]byte(text))
	if err != nil {
		return nil, &spaceweather.DecodeError{URL: p.url, Err: err}
	}
	logDropped(p.log, batch)
	return batch.Records, nil
}

// ParseKpForecast normalizes the JSON array-of-arrays payload. The first
// row is a header. Rows are [time_tag, kp, observed, noaa_scale].
func ParseKpForecast(data []byte) (spaceweather.Batch, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return spaceweather.Batch{}, err
	}

	var batch spaceweather.Batch
	for i, row := range rows {
		if i == 0 {
			continue
		}
		r, err := kpRecord(row)
		batch.Add(i, fmt.Sprint(row), r, err)
	}
	return batch, nil
}

func kpRecord(row []interface{}) (spaceweather.Record, error) {
	if len(row) < 2 {
		return spaceweather.Record{}, errShortRow
	}

	ts, err := time.Parse(noaaTimeLayout, field(row, 0))
	if err != nil {
		return spaceweather.Record{}, fmt.Errorf("time_tag: %w", err)
	}
	kp, err := strconv.ParseFloat(field(row, 1), 64)
	if err != nil {
		return spaceweather.Record{}, fmt.Errorf("kp: %w", err)
	}

	return spaceweather.Record{
		Time:   ts.UTC(),
		Values: []float64{kp},
		Kind:   spaceweather.ParseProvenance(field(row, 2)),
		Label:  field(row, 3),
	}, nil
}

// field renders a JSON scalar as text; null and missing fields are "".
func field(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	switch v := row[i].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
