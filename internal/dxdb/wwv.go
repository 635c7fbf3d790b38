package dxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/i474232898/sunflux/internal/spaceweather"
)

const (
	wwvHistoryQuery    = "SELECT time, K FROM wwv WHERE time > ? ORDER BY time"
	wwvConditionsQuery = "SELECT conditions FROM wwv ORDER BY time DESC LIMIT 1"
)

// BucketHours is the width of a K-index history bucket.
const BucketHours = 4

// KBucket is the highest K index reported within a 4-hour bucket.
type KBucket struct {
	Time    time.Time `json:"time"`
	K       float64   `json:"k"`
	Reports int       `json:"reports"`
}

// Bucket returns the start of the 4-hour bucket holding t.
func Bucket(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), BucketHours*(t.Hour()/BucketHours), 0, 0, 0, time.UTC)
}

// KIndexHistory returns the bucketed K index reported since the given
// time, oldest first. Rows with an unreadable timestamp are skipped.
func (d *DB) KIndexHistory(ctx context.Context, since time.Time) ([]KBucket, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(wwvHistoryQuery), d.timeArg(since))
	if err != nil {
		return nil, fmt.Errorf("querying wwv: %w", err)
	}
	defer rows.Close()

	buckets := make(map[time.Time]*KBucket)
	for rows.Next() {
		var (
			raw string
			k   sql.NullFloat64
		)
		if err := rows.Scan(&raw, &k); err != nil {
			return nil, fmt.Errorf("scanning wwv: %w", err)
		}
		if !k.Valid {
			continue
		}
		ts, err := parseTime(raw)
		if err != nil {
			d.log.Warn("skipping wwv row", "time", raw, "error", err)
			continue
		}

		key := Bucket(ts)
		b, ok := buckets[key]
		if !ok {
			b = &KBucket{Time: key, K: k.Float64}
			buckets[key] = b
		}
		b.K = math.Max(b.K, k.Float64)
		b.Reports++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading wwv: %w", err)
	}

	out := make([]KBucket, 0, len(buckets))
	for _, b := range buckets {
		b.K = math.Round(b.K)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// Conditions returns the conditions text of the latest WWV bulletin.
func (d *DB) Conditions(ctx context.Context) (string, error) {
	var cond sql.NullString
	err := d.db.QueryRowContext(ctx, wwvConditionsQuery).Scan(&cond)
	if errors.Is(err, sql.ErrNoRows) {
		return "", spaceweather.ErrNoData
	}
	if err != nil {
		return "", fmt.Errorf("querying wwv conditions: %w", err)
	}
	return cond.String, nil
}
