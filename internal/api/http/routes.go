package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/sunflux/internal/dxdb"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

var validate = validator.New()

// DXReader is the part of the DX database the API reads. A nil DXReader
// disables the DX endpoints.
type DXReader interface {
	KIndexHistory(ctx context.Context, since time.Time) ([]dxdb.KBucket, error)
	Conditions(ctx context.Context) (string, error)
	BandActivity(ctx context.Context, zone dxdb.Zone, at time.Time, delta time.Duration) (*dxdb.BandMatrix, error)
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *spaceweather.Service, dx DXReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/feeds", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"feeds": service.Status()})
	})

	v1.Get("/feeds/:name/records", func(c *fiber.Ctx) error {
		name := c.Params("name")
		w, err := service.DefaultWindow(name)
		if err != nil {
			return feedError(err)
		}

		var req recordsQuery
		if err := req.bind(c, w); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		w = spaceweather.Window{Start: req.From, End: req.To, Inclusive: req.Inclusive}
		records, err := service.Records(c.UserContext(), name, &w)
		if err != nil {
			return feedError(err)
		}

		return c.JSON(fiber.Map{
			"feed":      name,
			"from":      w.Start,
			"to":        w.End,
			"inclusive": w.Inclusive,
			"records":   records,
		})
	})

	v1.Get("/feeds/:name/latest", func(c *fiber.Ctx) error {
		r, err := service.Latest(c.UserContext(), c.Params("name"))
		if err != nil {
			return feedError(err)
		}
		return c.JSON(r)
	})

	v1.Post("/feeds/:name/refresh", func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := service.Refresh(c.UserContext(), name); err != nil {
			if errors.Is(err, spaceweather.ErrUnknownFeed) {
				return feedError(err)
			}
			return fiber.NewError(fiber.StatusBadGateway, "refresh failed: "+err.Error())
		}
		return c.JSON(fiber.Map{"feed": name, "refreshed": true})
	})

	v1.Get("/images/:name", func(c *fiber.Ctx) error {
		data, _, err := service.Image(c.UserContext(), c.Params("name"))
		if err != nil {
			return feedError(err)
		}
		c.Set(fiber.HeaderContentType, http.DetectContentType(data))
		return c.Send(data)
	})

	v1.Get("/kindex", func(c *fiber.Ctx) error {
		if dx == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "DX database not configured")
		}

		req := kindexQuery{Days: c.QueryInt("days", 7)}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		since := time.Now().UTC().Add(-time.Duration(req.Days) * 24 * time.Hour)
		buckets, err := dx.KIndexHistory(c.UserContext(), since)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read wwv history")
		}
		if len(buckets) == 0 {
			return fiber.NewError(fiber.StatusNotFound, spaceweather.ErrNoData.Error())
		}

		cond, err := dx.Conditions(c.UserContext())
		if err != nil && !errors.Is(err, spaceweather.ErrNoData) {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read wwv conditions")
		}

		return c.JSON(fiber.Map{
			"days":       req.Days,
			"since":      since,
			"conditions": cond,
			"buckets":    buckets,
		})
	})

	v1.Get("/dxcc", func(c *fiber.Ctx) error {
		if dx == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "DX database not configured")
		}

		var req dxccQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		m, err := dx.BandActivity(c.UserContext(), req.Zone, req.Date, time.Duration(req.Delta)*time.Hour)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read dx spots")
		}
		if m.Empty() {
			return fiber.NewError(fiber.StatusNotFound, spaceweather.ErrNoData.Error())
		}
		return c.JSON(m)
	})
}

// feedError maps service errors to HTTP errors.
func feedError(err error) error {
	switch {
	case errors.Is(err, spaceweather.ErrUnknownFeed):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, spaceweather.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, spaceweather.ErrNoData.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read feed")
	}
}

// recordsQuery holds query parameters for the records endpoint. Missing
// bounds come from the feed's default window.
type recordsQuery struct {
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required,gtefield=From"`
	Inclusive bool
}

func (r *recordsQuery) bind(c *fiber.Ctx, def spaceweather.Window) error {
	r.From, r.To, r.Inclusive = def.Start, def.End, def.Inclusive

	if s := c.Query("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		r.From = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		r.To = t
	}
	if s := c.Query("inclusive"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errors.New("inclusive must be a boolean")
		}
		r.Inclusive = b
	}
	return nil
}

type kindexQuery struct {
	Days int `validate:"min=1,max=30"`
}

// dxccQuery selects exactly one zone kind, an end date and a span in hours.
type dxccQuery struct {
	Zone  dxdb.Zone
	Date  time.Time `validate:"required"`
	Delta int       `validate:"min=1,max=48"`
}

func (q *dxccQuery) bind(c *fiber.Ctx) error {
	var kind, value string
	for _, k := range []string{"continent", "ituzone", "cqzone"} {
		v := c.Query(k)
		if v == "" {
			continue
		}
		if kind != "" {
			return errors.New("use only one of continent, ituzone or cqzone")
		}
		kind, value = k, v
	}
	if kind == "" {
		return errors.New("one of continent, ituzone or cqzone is required")
	}

	zone, err := dxdb.NewZone(kind, value)
	if err != nil {
		return err
	}
	q.Zone = zone
	q.Delta = c.QueryInt("delta", 1)

	q.Date = time.Now().UTC().Truncate(time.Minute)
	if s := c.Query("date"); s != "" && s != "now" {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		q.Date = t
	}
	return nil
}

// parseTime accepts RFC3339, YYYYMMDDHHMM or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if len(s) == len("200601021504") {
		if ts, err := time.Parse("200601021504", s); err == nil {
			return ts, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYYMMDDHHMM or unix seconds")
}
