package dxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Continents and Bands are the rows and columns of a band activity matrix.
var (
	Continents = []string{"AF", "AS", "EU", "NA", "OC", "SA"}
	Bands      = []int{6, 10, 12, 15, 17, 20, 30, 40, 60, 80, 160}
)

// zoneColumns maps a zone kind to the dxspot column holding the spotter's zone.
var zoneColumns = map[string]string{
	"continent": "de_cont",
	"ituzone":   "de_ituzone",
	"cqzone":    "de_cqzone",
}

var (
	errUnknownZone = errors.New("unknown zone kind")
	errBadZone     = errors.New("invalid zone value")
)

// Zone selects the spotters a band activity matrix is computed for.
type Zone struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// NewZone validates a zone kind and value. Continents are two-letter codes;
// ITU and CQ zones are positive integers.
func NewZone(kind, value string) (Zone, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	value = strings.TrimSpace(value)
	if _, ok := zoneColumns[kind]; !ok {
		return Zone{}, fmt.Errorf("%w: %q", errUnknownZone, kind)
	}
	if kind == "continent" {
		value = strings.ToUpper(value)
		if indexOf(Continents, value) < 0 {
			return Zone{}, fmt.Errorf("%w: continent %q", errBadZone, value)
		}
		return Zone{Kind: kind, Value: value}, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return Zone{}, fmt.Errorf("%w: %s %q", errBadZone, kind, value)
	}
	return Zone{Kind: kind, Value: strconv.Itoa(n)}, nil
}

func (z Zone) arg() interface{} {
	if z.Kind == "continent" {
		return z.Value
	}
	n, _ := strconv.Atoi(z.Value)
	return n
}

// BandMatrix counts spots heard from a zone, per destination continent
// (rows) and band (columns).
type BandMatrix struct {
	Zone       Zone      `json:"zone"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Continents []string  `json:"continents"`
	Bands      []int     `json:"bands"`
	Counts     [][]int   `json:"counts"`
	Total      int       `json:"total"`
}

// Empty reports whether no spot was counted.
func (m *BandMatrix) Empty() bool {
	return m.Total == 0
}

// BandActivity counts the spots made from zone during the delta hours
// ending at `at`. The range excludes its start and includes its end.
func (d *DB) BandActivity(ctx context.Context, zone Zone, at time.Time, delta time.Duration) (*BandMatrix, error) {
	column, ok := zoneColumns[zone.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownZone, zone.Kind)
	}
	end := at.UTC()
	start := end.Add(-delta)

	query := fmt.Sprintf(`SELECT band, to_cont, COUNT(*) FROM dxspot
		WHERE band >= 6 AND %s = ? AND time > ? AND time <= ?
		GROUP BY band, to_cont`, column)

	rows, err := d.db.QueryContext(ctx, d.rebind(query), zone.arg(), epoch(start), epoch(end))
	if err != nil {
		return nil, fmt.Errorf("querying dxspot: %w", err)
	}
	defer rows.Close()

	m := &BandMatrix{
		Zone:       zone,
		Start:      start,
		End:        end,
		Continents: Continents,
		Bands:      Bands,
		Counts:     make([][]int, len(Continents)),
	}
	for i := range m.Counts {
		m.Counts[i] = make([]int, len(Bands))
	}

	for rows.Next() {
		var (
			band   int
			toCont sql.NullString
			count  int
		)
		if err := rows.Scan(&band, &toCont, &count); err != nil {
			return nil, fmt.Errorf("scanning dxspot: %w", err)
		}
		x, y := indexOf(Continents, toCont.String), indexOf(Bands, band)
		if x < 0 || y < 0 {
			d.log.Debug("skipping spot count", "band", band, "to_cont", toCont.String, "count", count)
			continue
		}
		m.Counts[x][y] += count
		m.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dxspot: %w", err)
	}
	return m, nil
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
