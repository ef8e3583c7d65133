// Package datasource is the client of the auxiliary data service that
// counts fields in a geometry and serves weather datasets.
package datasource

import (
	"context"
	"cropstudy/internal/bundle"
	"cropstudy/internal/cache"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// Getter fetches a URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, url, credential string) ([]byte, error)
}

// Client talks to the data service. Weather series are immutable and cached
// by station id for the life of the client.
type Client struct {
	gw         Getter
	base       string
	credential string
	weather    *cache.Cache[string, bundle.WeatherSeries]
	logger     *slog.Logger
}

// New returns a client for the service at base.
func New(gw Getter, base, credential string) *Client {
	return &Client{
		gw:         gw,
		base:       strings.TrimRight(base, "/"),
		credential: credential,
		weather:    cache.New[string, bundle.WeatherSeries](),
		logger:     slog.With("component", "datasource"),
	}
}

type countResponse struct {
	Count *int `json:"count"`
}

// CountFields returns how many fields of crop intersect geometry (WKT) in year.
func (c *Client) CountFields(ctx context.Context, geometry string, crop, year int) (int, error) {
	q := url.Values{}
	q.Set("geometry", geometry)
	q.Set("crop", strconv.Itoa(crop))
	q.Set("year", strconv.Itoa(year))

	body, err := c.gw.Get(ctx, c.base+"/fields/count?"+q.Encode(), c.credential)
	if err != nil {
		return 0, fmt.Errorf("count fields: %w", err)
	}

	var resp countResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("count fields: invalid response: %w", err)
	}
	if resp.Count == nil || *resp.Count < 0 {
		return 0, fmt.Errorf("count fields: response has no valid count")
	}

	c.logger.Debug("Counted fields", "crop", crop, "year", year, "count", *resp.Count)
	return *resp.Count, nil
}

// Weather returns the daily weather of a station.
func (c *Client) Weather(ctx context.Context, station string) (bundle.WeatherSeries, error) {
	if station == "" {
		return bundle.WeatherSeries{}, fmt.Errorf("weather: station id is required")
	}
	return c.weather.Get(ctx, station, func(ctx context.Context) (bundle.WeatherSeries, error) {
		body, err := c.gw.Get(ctx, c.base+"/weather/"+url.PathEscape(station), c.credential)
		if err != nil {
			return bundle.WeatherSeries{}, fmt.Errorf("weather %s: %w", station, err)
		}
		series, err := bundle.ParseWeatherJSON(body)
		if err != nil {
			return bundle.WeatherSeries{}, fmt.Errorf("weather %s: invalid response: %w", station, err)
		}
		if series.Station == "" {
			series.Station = station
		}
		c.logger.Debug("Loaded weather", "station", station, "days", len(series.Days))
		return series, nil
	})
}
