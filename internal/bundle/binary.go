package bundle

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary form. A bundle is a sequence of variable
// messages (field 1); the value field used depends on the variable type.
const (
	fieldVariable protowire.Number = 1

	fieldName        protowire.Number = 1
	fieldType        protowire.Number = 2
	fieldInt         protowire.Number = 3
	fieldDouble      protowire.Number = 4
	fieldString      protowire.Number = 5
	fieldControllers protowire.Number = 6
	fieldPoint       protowire.Number = 7
	fieldWeather     protowire.Number = 8

	fieldX protowire.Number = 1
	fieldY protowire.Number = 2

	fieldStation   protowire.Number = 1
	fieldLatitude  protowire.Number = 2
	fieldLongitude protowire.Number = 3
	fieldElevation protowire.Number = 4
	fieldDay       protowire.Number = 5

	fieldDate      protowire.Number = 1
	fieldTMin      protowire.Number = 2
	fieldTMax      protowire.Number = 3
	fieldRain      protowire.Number = 4
	fieldRadiation protowire.Number = 5
	fieldWind      protowire.Number = 6
	fieldVapour    protowire.Number = 7
)

var errTruncated = errors.New("truncated bundle")

// MarshalBinary encodes the bundle in protobuf wire format, variables sorted
// by name.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, name := range b.Names() {
		msg, err := appendVariable(nil, name, b.vars[name])
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		out = protowire.AppendTag(out, fieldVariable, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out, nil
}

func appendVariable(b []byte, name string, v Value) ([]byte, error) {
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type()))

	switch x := v.(type) {
	case Int:
		b = protowire.AppendTag(b, fieldInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(x)))
	case Double:
		b = appendDouble(b, fieldDouble, float64(x))
	case String:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		b = protowire.AppendString(b, string(x))
	case Date:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		b = protowire.AppendString(b, x.String())
	case Controllers:
		for _, c := range x {
			b = protowire.AppendTag(b, fieldControllers, protowire.BytesType)
			b = protowire.AppendString(b, c)
		}
	case Table:
		for _, p := range x {
			var pt []byte
			pt = appendDouble(pt, fieldX, p.X)
			pt = appendDouble(pt, fieldY, p.Y)
			b = protowire.AppendTag(b, fieldPoint, protowire.BytesType)
			b = protowire.AppendBytes(b, pt)
		}
	case WeatherSeries:
		b = protowire.AppendTag(b, fieldWeather, protowire.BytesType)
		b = protowire.AppendBytes(b, appendWeather(nil, x))
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return b, nil
}

func appendWeather(b []byte, w WeatherSeries) []byte {
	b = protowire.AppendTag(b, fieldStation, protowire.BytesType)
	b = protowire.AppendString(b, w.Station)
	b = appendDouble(b, fieldLatitude, w.Latitude)
	b = appendDouble(b, fieldLongitude, w.Longitude)
	b = appendDouble(b, fieldElevation, w.Elevation)
	for _, d := range w.Days {
		var day []byte
		day = protowire.AppendTag(day, fieldDate, protowire.BytesType)
		day = protowire.AppendString(day, d.Date.String())
		day = appendDouble(day, fieldTMin, d.TMin)
		day = appendDouble(day, fieldTMax, d.TMax)
		day = appendDouble(day, fieldRain, d.Rain)
		day = appendDouble(day, fieldRadiation, d.Radiation)
		day = appendDouble(day, fieldWind, d.Wind)
		day = appendDouble(day, fieldVapour, d.Vapour)
		b = protowire.AppendTag(b, fieldDay, protowire.BytesType)
		b = protowire.AppendBytes(b, day)
	}
	return b
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// UnmarshalBinary decodes the form written by MarshalBinary. Unknown fields
// are skipped.
func (b *Bundle) UnmarshalBinary(data []byte) error {
	vars := make(map[string]Value)
	err := walk(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		if num != fieldVariable || typ != protowire.BytesType {
			return nil
		}
		name, v, err := parseVariable(field)
		if err != nil {
			return err
		}
		vars[name] = normalize(v)
		return nil
	})
	if err != nil {
		return err
	}
	b.vars = vars
	return nil
}

func parseVariable(data []byte) (string, Value, error) {
	var (
		name        string
		typ         Type
		i           int64
		f           float64
		s           string
		controllers Controllers
		table       Table
		weather     WeatherSeries
	)
	err := walk(data, func(num protowire.Number, wt protowire.Type, field []byte) error {
		switch num {
		case fieldName:
			name = string(field)
		case fieldType:
			v, err := varint(field)
			typ = Type(v)
			return err
		case fieldInt:
			v, err := varint(field)
			i = protowire.DecodeZigZag(v)
			return err
		case fieldDouble:
			v, err := fixed64(field)
			f = math.Float64frombits(v)
			return err
		case fieldString:
			s = string(field)
		case fieldControllers:
			controllers = append(controllers, string(field))
		case fieldPoint:
			p, err := parsePoint(field)
			table = append(table, p)
			return err
		case fieldWeather:
			w, err := parseWeather(field)
			weather = w
			return err
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		return "", nil, fmt.Errorf("variable without name")
	}

	switch typ {
	case TypeInt:
		return name, Int(i), nil
	case TypeDouble:
		return name, Double(f), nil
	case TypeString:
		return name, String(s), nil
	case TypeDate:
		d, err := ParseDate(s)
		return name, d, err
	case TypeControllers:
		return name, controllers, nil
	case TypeTable:
		return name, table, nil
	case TypeWeather:
		return name, weather, nil
	default:
		return "", nil, fmt.Errorf("variable %s: unknown type %d", name, int(typ))
	}
}

func parsePoint(data []byte) (Point, error) {
	var p Point
	err := walk(data, func(num protowire.Number, _ protowire.Type, field []byte) error {
		v, err := fixed64(field)
		switch num {
		case fieldX:
			p.X = math.Float64frombits(v)
		case fieldY:
			p.Y = math.Float64frombits(v)
		default:
			return nil
		}
		return err
	})
	return p, err
}

func parseWeather(data []byte) (WeatherSeries, error) {
	var w WeatherSeries
	err := walk(data, func(num protowire.Number, _ protowire.Type, field []byte) error {
		switch num {
		case fieldStation:
			w.Station = string(field)
			return nil
		case fieldDay:
			d, err := parseDay(field)
			w.Days = append(w.Days, d)
			return err
		}
		v, err := fixed64(field)
		switch num {
		case fieldLatitude:
			w.Latitude = math.Float64frombits(v)
		case fieldLongitude:
			w.Longitude = math.Float64frombits(v)
		case fieldElevation:
			w.Elevation = math.Float64frombits(v)
		default:
			return nil
		}
		return err
	})
	return w, err
}

func parseDay(data []byte) (WeatherDay, error) {
	var d WeatherDay
	err := walk(data, func(num protowire.Number, _ protowire.Type, field []byte) error {
		if num == fieldDate {
			date, err := ParseDate(string(field))
			d.Date = date
			return err
		}
		v, err := fixed64(field)
		x := math.Float64frombits(v)
		switch num {
		case fieldTMin:
			d.TMin = x
		case fieldTMax:
			d.TMax = x
		case fieldRain:
			d.Rain = x
		case fieldRadiation:
			d.Radiation = x
		case fieldWind:
			d.Wind = x
		case fieldVapour:
			d.Vapour = x
		default:
			return nil
		}
		return err
	})
	return d, err
}

// walk calls fn for every field of a message. For varint and fixed fields
// the raw encoded value is passed; for bytes fields the payload.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", errTruncated, protowire.ParseError(n))
		}
		data = data[n:]

		var field []byte
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errTruncated, protowire.ParseError(m))
			}
			field, n = v, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errTruncated, protowire.ParseError(m))
			}
			field, n = data[:m], m
		}
		data = data[n:]

		if err := fn(num, typ, field); err != nil {
			return err
		}
	}
	return nil
}

func varint(field []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(field)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func fixed64(field []byte) (uint64, error) {
	v, n := protowire.ConsumeFixed64(field)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}
