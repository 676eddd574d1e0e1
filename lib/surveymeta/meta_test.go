package surveymeta

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const sampleMeta = `{
	"info": {"from_source": {"pandas_reader": "sav"}},
	"lib": {
		"default text": "en-GB",
		"values": {
			"agree_scale": [
				{"value": 1, "text": {"en-GB": "Agree", "is-IS": "Sammála"}},
				{"value": 2, "text": {"en-GB": "Disagree", "is-IS": "Ósammála"}}
			]
		}
	},
	"columns": {
		"gender": {
			"name": "gender",
			"type": "single",
			"text": {"en-GB": "What is your gender?", "is-IS": "Hvert er kyn þitt?"},
			"values": [
				{"value": 1, "text": {"en-GB": "Male", "is-IS": "Karl"}},
				{"value": 2, "text": {"en-GB": "Female", "is-IS": "Kona"}},
				{"value": 3, "text": {"en-GB": "Other"}}
			]
		},
		"q1": {
			"name": "q1",
			"type": "single",
			"text": {"en-GB": "Do you agree?"},
			"values": "lib@values@agree_scale"
		},
		"region": {
			"name": "region",
			"type": "single",
			"text": {"en-GB": "Region"},
			"values": [{"value": "north", "text": {"en-GB": "The North"}}]
		},
		"age": {"name": "age", "type": "int", "text": {"en-GB": "Age"}}
	},
	"masks": {
		"grid": {
			"name": "grid",
			"type": "array",
			"text": {"en-GB": "Grid question"},
			"values": "lib@values@agree_scale",
			"items": [{"source": "columns@q1", "text": {"en-GB": "Item 1"}}]
		}
	}
}`

func parseSample(t *testing.T) Meta {
	meta, err := Parse([]byte(sampleMeta))
	require.NoError(t, err)
	return meta
}

func TestValueLabel(t *testing.T) {
	meta := parseSample(t)

	testCases := []struct {
		variable string
		code     string
		lang     string
		expect   string
	}{
		{variable: "gender", code: "1", expect: "Male"},
		{variable: "gender", code: "2", lang: "is-IS", expect: "Kona"},
		// missing translation falls back to the default language
		{variable: "gender", code: "3", lang: "is-IS", expect: "Other"},
		{variable: "q1", code: "2", expect: "Disagree"},
		{variable: "q1", code: "1", lang: "is-IS", expect: "Sammála"},
		{variable: "grid", code: "1", expect: "Agree"},
		{variable: "region", code: "north", expect: "The North"},
		{variable: "gender", code: "c%", expect: "%"},
		{variable: "gender", code: "All", expect: "All"},
		{variable: "gender", code: "9", expect: "9"},
		{variable: "@", code: "Total", expect: "Total"},
		{variable: "unknown", code: "x%", expect: "%"},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, meta.ValueLabel(test.variable, test.code, test.lang), "%s=%s", test.variable, test.code)
	}
}

func TestVariableText(t *testing.T) {
	meta := parseSample(t)

	require.Equal(t, "What is your gender?", meta.VariableText("gender", ""))
	require.Equal(t, "Hvert er kyn þitt?", meta.VariableText("gender", "is-IS"))
	require.Equal(t, "Do you agree?", meta.VariableText("q1", "de-DE"))
	require.Equal(t, "Grid question", meta.VariableText("grid", ""))
	require.Equal(t, "@", meta.VariableText("@", ""))

	labels := meta.In("is-IS")
	require.Equal(t, "is-IS", labels.Language())
	require.Equal(t, "Karl", labels.ValueLabel("gender", "1"))
	require.Equal(t, "en-GB", meta.In("").Language())
}

func TestCodeJSON(t *testing.T) {
	var values []Value
	err := json.Unmarshal([]byte(`[
		{"value": 1}, {"value": 2.0}, {"value": "a"}, {"value": 1.5},
		{"value": "007"}, {"value": "+5"}, {"value": "1"}
	]`), &values)
	require.NoError(t, err)

	testCases := []struct {
		code     Code
		expect   string
		isString bool
	}{
		{code: values[0].Value, expect: "1"},
		{code: values[1].Value, expect: "2"},
		{code: values[2].Value, expect: "a", isString: true},
		{code: values[3].Value, expect: "1.5"},
		{code: values[4].Value, expect: "007", isString: true},
		{code: values[5].Value, expect: "+5", isString: true},
		{code: values[6].Value, expect: "1", isString: true},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, test.code.String())
		require.Equal(t, test.isString, test.code.IsString(), test.expect)
	}

	out, err := json.Marshal(values)
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"value": 1, "text": null}, {"value": 2, "text": null}, {"value": "a", "text": null},
		{"value": 1.5, "text": null}, {"value": "007", "text": null}, {"value": "+5", "text": null},
		{"value": "1", "text": null}
	]`, string(out))

	var again []Value
	require.NoError(t, json.Unmarshal(out, &again))
	require.Equal(t, values, again)
}

func TestTextGetFallbackIsStable(t *testing.T) {
	text := Text{"fr-FR": "Région", "de-DE": "Region", "is-IS": "Svæði", "es-ES": ""}
	for range 20 {
		require.Equal(t, "Region", text.Get("en-GB", "en-US"))
	}
	require.Equal(t, "", Text{}.Get("en-GB", ""))
}

func TestValuesReferenceRoundTrip(t *testing.T) {
	meta := parseSample(t)
	out, err := json.Marshal(meta.Columns["q1"])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "lib@values@agree_scale", decoded["values"])

	_, ok := meta.Values("age")
	require.True(t, ok)
	_, ok = meta.Values("missing")
	require.False(t, ok)
}
