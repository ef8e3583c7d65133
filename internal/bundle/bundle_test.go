package bundle

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle(t *testing.T) *Bundle {
	t.Helper()
	start, err := ParseDate("2019-03-01")
	require.NoError(t, err)

	b := New()
	b.Set("CROP", Int(256))
	b.Set("OFFSET", Int(-40))
	b.Set("TSUM1", Double(1123.5))
	b.Set("TBASEM", Double(-0.1))
	b.Set("CROP_NAME", String("sugarbeet"))
	b.Set("CROP_START_DATE", start)
	b.Set("AGROMANAGEMENT", Controllers{"sowing", "harvest"})
	b.Set("AMAXTB", Table{{X: 0, Y: 22.5}, {X: 1.0, Y: 45}, {X: 2.0, Y: 0.1}})
	b.Set("WEATHER", WeatherSeries{
		Station:   "NL-260",
		Latitude:  52.1,
		Longitude: 5.18,
		Elevation: 1.9,
		Days: []WeatherDay{
			{Date: start, TMin: 1.5, TMax: 9.25, Rain: 0.4, Radiation: 6200, Wind: 3.1, Vapour: 0.82},
			{Date: Date{Year: 2019, Month: time.March, Day: 2}, TMin: -2, TMax: 6, Rain: 0, Radiation: 8100, Wind: 5.6, Vapour: 0.7},
		},
	})
	return b
}

func TestNamesSorted(t *testing.T) {
	b := sampleBundle(t)
	assert.Equal(t, []string{
		"AGROMANAGEMENT", "AMAXTB", "CROP", "CROP_NAME", "CROP_START_DATE",
		"OFFSET", "TBASEM", "TSUM1", "WEATHER",
	}, b.Names())
	assert.Equal(t, 9, b.Len())
}

func TestJSONRoundTrip(t *testing.T) {
	b := sampleBundle(t)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var got Bundle
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, b.vars, got.vars)

	again, err := json.Marshal(&got)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestJSONShape(t *testing.T) {
	b := New()
	b.Set("year", Int(2019))
	b.Set("start", Date{Year: 2019, Month: time.April, Day: 5})

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"variables":[
		{"name":"start","type":"date","value":"2019-04-05"},
		{"name":"year","type":"int","value":2019}
	]}`, string(data))
}

func TestJSONRejectsNonFinite(t *testing.T) {
	b := New()
	b.Set("bad", Double(math.NaN()))
	_, err := json.Marshal(b)
	require.Error(t, err)

	b.Set("bad", Double(math.Inf(1)))
	_, err = json.Marshal(b)
	require.Error(t, err)
}

func TestJSONUnknownType(t *testing.T) {
	var b Bundle
	err := json.Unmarshal([]byte(`{"variables":[{"name":"x","type":"matrix","value":1}]}`), &b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matrix")
}

func TestBinaryRoundTrip(t *testing.T) {
	b := sampleBundle(t)

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var got Bundle
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, b.vars, got.vars)
}

func TestBinaryKeepsNonFinite(t *testing.T) {
	b := New()
	b.Set("inf", Double(math.Inf(-1)))

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var got Bundle
	require.NoError(t, got.UnmarshalBinary(data))
	v, ok := got.Get("inf")
	require.True(t, ok)
	assert.True(t, math.IsInf(float64(v.(Double)), -1))
}

func TestEmptyListsRoundTrip(t *testing.T) {
	b := New()
	b.Set("controllers", Controllers(nil))
	b.Set("table", Table(nil))
	b.Set("weather", WeatherSeries{Station: "X"})

	data, err := b.MarshalBinary()
	require.NoError(t, err)
	var fromBinary Bundle
	require.NoError(t, fromBinary.UnmarshalBinary(data))
	assert.Equal(t, b.vars, fromBinary.vars)

	js, err := json.Marshal(b)
	require.NoError(t, err)
	var fromJSON Bundle
	require.NoError(t, json.Unmarshal(js, &fromJSON))
	assert.Equal(t, b.vars, fromJSON.vars)
}

func TestBinaryTruncated(t *testing.T) {
	data, err := sampleBundle(t).MarshalBinary()
	require.NoError(t, err)

	var got Bundle
	err = got.UnmarshalBinary(data[:len(data)-3])
	require.Error(t, err)
}

func TestCloneIndependent(t *testing.T) {
	b := sampleBundle(t)
	c := b.Clone()

	c.Set("CROP", Int(233))
	v, _ := c.Get("AMAXTB")
	v.(Table)[0].Y = 99

	orig, _ := b.Get("CROP")
	assert.Equal(t, Int(256), orig)
	table, _ := b.Get("AMAXTB")
	assert.Equal(t, 22.5, table.(Table)[0].Y)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2020-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2020, Month: time.February, Day: 29}, d)
	assert.Equal(t, "2020-02-29", d.String())

	_, err = ParseDate("2019-02-30")
	require.Error(t, err)
}
