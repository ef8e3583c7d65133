package bundle

import (
	"encoding/json"
	"fmt"
	"math"
)

type jsonBundle struct {
	Variables []jsonVariable `json:"variables"`
}

type jsonVariable struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonWeather struct {
	Station   string           `json:"station"`
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Elevation float64          `json:"elevation"`
	Days      []jsonWeatherDay `json:"days"`
}

type jsonWeatherDay struct {
	Date      string  `json:"date"`
	TMin      float64 `json:"tmin"`
	TMax      float64 `json:"tmax"`
	Rain      float64 `json:"rain"`
	Radiation float64 `json:"radiation"`
	Wind      float64 `json:"wind"`
	Vapour    float64 `json:"vapour"`
}

// MarshalJSON encodes the bundle as {"variables":[{"name","type","value"}]}
// sorted by name. Non-finite doubles cannot be represented and fail.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	out := jsonBundle{Variables: make([]jsonVariable, 0, b.Len())}
	for _, name := range b.Names() {
		v := b.vars[name]
		raw, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		out.Variables = append(out.Variables, jsonVariable{Name: name, Type: v.Type().String(), Value: raw})
	}
	return json.Marshal(out)
}

func marshalValue(v Value) ([]byte, error) {
	switch x := v.(type) {
	case Int:
		return json.Marshal(int64(x))
	case Double:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("non-finite double %v", float64(x))
		}
		return json.Marshal(float64(x))
	case String:
		return json.Marshal(string(x))
	case Date:
		return json.Marshal(x.String())
	case Controllers:
		return json.Marshal([]string(x))
	case Table:
		pairs := make([][2]float64, len(x))
		for i, p := range x {
			pairs[i] = [2]float64{p.X, p.Y}
		}
		return json.Marshal(pairs)
	case WeatherSeries:
		w := jsonWeather{
			Station:   x.Station,
			Latitude:  x.Latitude,
			Longitude: x.Longitude,
			Elevation: x.Elevation,
			Days:      make([]jsonWeatherDay, len(x.Days)),
		}
		for i, d := range x.Days {
			w.Days[i] = jsonWeatherDay{
				Date: d.Date.String(), TMin: d.TMin, TMax: d.TMax, Rain: d.Rain,
				Radiation: d.Radiation, Wind: d.Wind, Vapour: d.Vapour,
			}
		}
		return json.Marshal(w)
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var in jsonBundle
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	vars := make(map[string]Value, len(in.Variables))
	for _, jv := range in.Variables {
		if jv.Name == "" {
			return fmt.Errorf("variable without name")
		}
		t, err := parseType(jv.Type)
		if err != nil {
			return fmt.Errorf("variable %s: %w", jv.Name, err)
		}
		v, err := unmarshalValue(t, jv.Value)
		if err != nil {
			return fmt.Errorf("variable %s: %w", jv.Name, err)
		}
		vars[jv.Name] = normalize(v)
	}
	b.vars = vars
	return nil
}

func unmarshalValue(t Type, raw json.RawMessage) (Value, error) {
	switch t {
	case TypeInt:
		var x int64
		err := json.Unmarshal(raw, &x)
		return Int(x), err
	case TypeDouble:
		var x float64
		err := json.Unmarshal(raw, &x)
		return Double(x), err
	case TypeString:
		var x string
		err := json.Unmarshal(raw, &x)
		return String(x), err
	case TypeDate:
		var x string
		if err := json.Unmarshal(raw, &x); err != nil {
			return nil, err
		}
		return ParseDate(x)
	case TypeControllers:
		var x []string
		err := json.Unmarshal(raw, &x)
		return Controllers(x), err
	case TypeTable:
		var pairs [][2]float64
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, err
		}
		table := make(Table, len(pairs))
		for i, p := range pairs {
			table[i] = Point{X: p[0], Y: p[1]}
		}
		return table, nil
	case TypeWeather:
		var w jsonWeather
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		series := WeatherSeries{
			Station:   w.Station,
			Latitude:  w.Latitude,
			Longitude: w.Longitude,
			Elevation: w.Elevation,
			Days:      make([]WeatherDay, len(w.Days)),
		}
		for i, d := range w.Days {
			date, err := ParseDate(d.Date)
			if err != nil {
				return nil, err
			}
			series.Days[i] = WeatherDay{
				Date: date, TMin: d.TMin, TMax: d.TMax, Rain: d.Rain,
				Radiation: d.Radiation, Wind: d.Wind, Vapour: d.Vapour,
			}
		}
		return series, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

// ParseWeatherJSON decodes a weather series in the form used for bundle
// values: {"station","latitude","longitude","elevation","days":[...]}.
func ParseWeatherJSON(data []byte) (WeatherSeries, error) {
	v, err := unmarshalValue(TypeWeather, data)
	if err != nil {
		return WeatherSeries{}, err
	}
	return normalize(v).(WeatherSeries), nil
}
