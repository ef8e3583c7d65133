// Package bundle holds the typed input variables of a simulation job and
// their JSON and binary encodings. Both encodings round-trip exactly.
package bundle

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Type of a variable.
type Type int

const (
	TypeInt Type = iota + 1
	TypeDouble
	TypeString
	TypeDate
	TypeControllers
	TypeTable
	TypeWeather
)

var typeNames = map[Type]string{
	TypeInt:         "int",
	TypeDouble:      "double",
	TypeString:      "string",
	TypeDate:        "date",
	TypeControllers: "controllers",
	TypeTable:       "table",
	TypeWeather:     "weather",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func parseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown variable type %q", s)
}

// Value is the closed set of variable values.
type Value interface {
	Type() Type
}

// Int is an integer variable.
type Int int64

// Double is a floating point variable.
type Double float64

// String is a text variable.
type String string

// Date is a calendar day without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Controllers lists the names of management controllers.
type Controllers []string

// Point is one (x, y) pair of an interpolation table.
type Point struct {
	X float64
	Y float64
}

// Table is an interpolation table, ordered by X.
type Table []Point

// WeatherDay is one day of meteorological input.
type WeatherDay struct {
	Date      Date
	TMin      float64 // °C
	TMax      float64 // °C
	Rain      float64 // mm
	Radiation float64 // kJ/m²
	Wind      float64 // m/s
	Vapour    float64 // kPa
}

// WeatherSeries is the daily weather of one station.
type WeatherSeries struct {
	Station   string
	Latitude  float64
	Longitude float64
	Elevation float64
	Days      []WeatherDay
}

func (Int) Type() Type           { return TypeInt }
func (Double) Type() Type        { return TypeDouble }
func (String) Type() Type        { return TypeString }
func (Date) Type() Type          { return TypeDate }
func (Controllers) Type() Type   { return TypeControllers }
func (Table) Type() Type         { return TypeTable }
func (WeatherSeries) Type() Type { return TypeWeather }

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Bundle is a set of named variables. Not safe for concurrent mutation.
type Bundle struct {
	vars map[string]Value
}

// New returns an empty bundle.
func New() *Bundle {
	return &Bundle{vars: make(map[string]Value)}
}

// Set stores v under name, replacing any previous value.
func (b *Bundle) Set(name string, v Value) {
	if b.vars == nil {
		b.vars = make(map[string]Value)
	}
	b.vars[name] = normalize(v)
}

// Get returns the value stored under name.
func (b *Bundle) Get(name string) (Value, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// Names returns the variable names in sorted order.
func (b *Bundle) Names() []string {
	return slices.Sorted(maps.Keys(b.vars))
}

// Len returns the number of variables.
func (b *Bundle) Len() int {
	return len(b.vars)
}

// Clone returns a copy that can be modified independently.
func (b *Bundle) Clone() *Bundle {
	c := New()
	for name, v := range b.vars {
		c.vars[name] = clone(v)
	}
	return c
}

// normalize makes empty lists non-nil so that decoded and constructed
// bundles compare equal.
func normalize(v Value) Value {
	switch x := v.(type) {
	case Controllers:
		if x == nil {
			return Controllers{}
		}
	case Table:
		if x == nil {
			return Table{}
		}
	case WeatherSeries:
		if x.Days == nil {
			x.Days = []WeatherDay{}
			return x
		}
	}
	return v
}

func clone(v Value) Value {
	switch x := v.(type) {
	case Controllers:
		return slices.Clone(x)
	case Table:
		return slices.Clone(x)
	case WeatherSeries:
		x.Days = slices.Clone(x.Days)
		return x
	}
	return v
}
