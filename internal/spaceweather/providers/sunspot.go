package providers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// SunspotURL is SIDC's Estimated International Sunspot Number, current month.
const SunspotURL = "https://www.sidc.be/silso/DATA/EISN/EISN_current.csv"

// Values of a sunspot record, after the date.
const (
	SunspotDecimalDate = iota
	SunspotNumber
	SunspotStdDev
	SunspotValid
	SunspotEntries
)

// SunspotProvider reads the daily EISN CSV.
type SunspotProvider struct {
	name    string
	url     string
	fetcher *Fetcher
	log     *slog.Logger
}

func NewSunspotProvider(fetcher *Fetcher, url string) *SunspotProvider {
	if url == "" {
		url = SunspotURL
	}
	return &SunspotProvider{
		name:    "ssn",
		url:     url,
		fetcher: fetcher,
		log:     logging.Component("provider").With("feed", "ssn"),
	}
}

func (p *SunspotProvider) Name() string {
	return p.name
}

func (p *SunspotProvider) Fetch(ctx context.Context) (spaceweather.Sequence, error) {
	p.log.Info("downloading data from SIDC", "url", p.url)

	payload, err := p.fetcher.Get(ctx, p.url)
	if err != nil {
		return nil, err
	}
	text, err := payload.Text()
	if err != nil {
		return nil, err
	}

	batch := ParseSunspot(text)
	logDropped(p.log, batch)
	return batch.Records, nil
}

// ParseSunspot normalizes the CSV payload row by row. A row that cannot be
// read or has no valid date is dropped; the others are kept.
func ParseSunspot(text string) spaceweather.Batch {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var batch spaceweather.Batch
	for i := 0; ; i++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			batch.Add(i, "", spaceweather.Record{}, err)
			continue
		}
		rec, err := SunspotRecord(fields)
		batch.Add(i, strings.Join(fields, ","), rec, err)
	}
	return batch
}

// SunspotRecord converts one CSV row. The first three fields are the
// year, month and day; every later field is kept as a value.
func SunspotRecord(fields []string) (spaceweather.Record, error) {
	if len(fields) < 3 {
		return spaceweather.Record{}, errShortRow
	}

	nums := make([]float64, len(fields))
	for i, f := range fields {
		nums[i] = ParseNumeric(f)
	}

	for _, n := range nums[:3] {
		if n != math.Trunc(n) {
			return spaceweather.Record{}, fmt.Errorf("invalid date %v-%v-%v", nums[0], nums[1], nums[2])
		}
	}
	y, m, d := int(nums[0]), time.Month(nums[1]), int(nums[2])
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if y <= 0 || date.Year() != y || date.Month() != m || date.Day() != d {
		return spaceweather.Record{}, fmt.Errorf("invalid date %d-%d-%d", y, m, d)
	}

	return spaceweather.Record{
		Time:   date,
		Values: append([]float64{}, nums[3:]...),
	}, nil
}

// ParseNumeric converts a CSV field. All-digit fields are integers, fields
// with a decimal point are floats, and anything else (blank, signs, text)
// is 0. Historical feeds emit placeholders, so this never fails.
func ParseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if isDecimal(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	if strings.Contains(s, ".") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
