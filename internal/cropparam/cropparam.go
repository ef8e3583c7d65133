// Package cropparam reads crop parameter files into job input bundles.
//
// A parameter file is a YAML mapping of variable names to values:
//
//	CROP_NAME: sugarbeet
//	TSUM1: 1123.5
//	IDSL: 0
//	CROP_START_DATE: 2019-03-01
//	AMAXTB: [[0.0, 22.5], [1.0, 45.0]]
//	controllers: [sowing, harvest]
//	weather_station: NL-260
//	crop: 256
//
// Integers and floats keep their YAML type. A YYYY-MM-DD scalar becomes a
// date. A list of [x, y] pairs becomes a table. The controllers key holds
// management controller names. weather_station is resolved through a
// WeatherSource into the WEATHER variable. crop names a library entry whose
// variables are used for every name the file does not set.
package cropparam

import (
	"bytes"
	"context"
	"cropstudy/internal/bundle"
	"cropstudy/internal/cache"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Keys with special meaning in a parameter file.
const (
	KeyControllers    = "controllers"
	KeyWeatherStation = "weather_station"
	KeyCrop           = "crop"

	// WeatherVariable is the bundle variable holding the resolved weather.
	WeatherVariable = "WEATHER"
)

// WeatherSource resolves a station id to its daily weather.
type WeatherSource interface {
	Weather(ctx context.Context, station string) (bundle.WeatherSeries, error)
}

// Parse decodes a parameter document without resolving weather or crop
// references. The returned references are empty when the keys are absent.
func Parse(data []byte) (b *bundle.Bundle, station string, crop int, err error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, "", 0, fmt.Errorf("invalid parameter file: %w", err)
	}
	if len(doc.Content) == 0 {
		return bundle.New(), "", 0, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, "", 0, fmt.Errorf("parameter file must be a mapping")
	}

	b = bundle.New()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, node := root.Content[i].Value, root.Content[i+1]
		switch key {
		case KeyWeatherStation:
			station = node.Value
			continue
		case KeyCrop:
			crop, err = strconv.Atoi(node.Value)
			if err != nil {
				return nil, "", 0, fmt.Errorf("%s: crop code must be an integer", key)
			}
			continue
		case KeyControllers:
			var names []string
			if err := node.Decode(&names); err != nil {
				return nil, "", 0, fmt.Errorf("%s: %w", key, err)
			}
			b.Set(key, bundle.Controllers(names))
			continue
		}

		v, err := decodeValue(node)
		if err != nil {
			return nil, "", 0, fmt.Errorf("%s: %w", key, err)
		}
		b.Set(key, v)
	}
	return b, station, crop, nil
}

func decodeValue(node *yaml.Node) (bundle.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.SequenceNode:
		return decodeTable(node)
	default:
		return nil, fmt.Errorf("unsupported value at line %d", node.Line)
	}
}

func decodeScalar(node *yaml.Node) (bundle.Value, error) {
	switch node.ShortTag() {
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return nil, err
		}
		return bundle.Int(n), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return bundle.Double(f), nil
	case "!!timestamp":
		return bundle.ParseDate(node.Value)
	case "!!str":
		if d, err := bundle.ParseDate(node.Value); err == nil {
			return d, nil
		}
		return bundle.String(node.Value), nil
	default:
		return nil, fmt.Errorf("unsupported scalar %s at line %d", node.ShortTag(), node.Line)
	}
}

func decodeTable(node *yaml.Node) (bundle.Value, error) {
	var pairs [][]float64
	if err := node.Decode(&pairs); err != nil {
		return nil, fmt.Errorf("table must be a list of [x, y] pairs: %w", err)
	}
	table := make(bundle.Table, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("table row %d has %d values, want 2", i, len(p))
		}
		if i > 0 && p[0] < pairs[i-1][0] {
			return nil, fmt.Errorf("table row %d: x values must not decrease", i)
		}
		table[i] = bundle.Point{X: p[0], Y: p[1]}
	}
	return table, nil
}

// Library resolves parameter files against a directory of per-crop defaults
// (<dir>/<code>.yaml). Crop entries are read once.
type Library struct {
	dir     string
	weather WeatherSource
	crops   *cache.Cache[int, *bundle.Bundle]
	logger  *slog.Logger
}

// NewLibrary returns a library over dir. weather may be nil when no file
// names a weather station.
func NewLibrary(dir string, weather WeatherSource) *Library {
	return &Library{
		dir:     dir,
		weather: weather,
		crops:   cache.New[int, *bundle.Bundle](),
		logger:  slog.With("component", "cropparam"),
	}
}

// Crop returns the default parameters of a crop code. The result may be
// modified by the caller.
func (l *Library) Crop(ctx context.Context, code int) (*bundle.Bundle, error) {
	b, err := l.crops.Get(ctx, code, func(ctx context.Context) (*bundle.Bundle, error) {
		path := filepath.Join(l.dir, strconv.Itoa(code)+".yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("crop %d: %w", code, err)
		}
		b, station, _, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("crop %d: %w", code, err)
		}
		if err := l.resolveWeather(ctx, b, station); err != nil {
			return nil, fmt.Errorf("crop %d: %w", code, err)
		}
		l.logger.Debug("Loaded crop parameters", "crop", code, "variables", b.Len())
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// LoadFile reads a parameter file, resolving its weather station and crop
// defaults.
func (l *Library) LoadFile(ctx context.Context, path string) (*bundle.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read parameter file: %w", err)
	}
	b, station, crop, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if crop != 0 {
		defaults, err := l.Crop(ctx, crop)
		if err != nil {
			return nil, err
		}
		for _, name := range defaults.Names() {
			if _, ok := b.Get(name); !ok {
				v, _ := defaults.Get(name)
				b.Set(name, v)
			}
		}
	}

	if err := l.resolveWeather(ctx, b, station); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func (l *Library) resolveWeather(ctx context.Context, b *bundle.Bundle, station string) error {
	if station == "" {
		return nil
	}
	if l.weather == nil {
		return fmt.Errorf("weather station %s given but no weather source configured", station)
	}
	series, err := l.weather.Weather(ctx, station)
	if err != nil {
		return err
	}
	b.Set(WeatherVariable, series)
	return nil
}
