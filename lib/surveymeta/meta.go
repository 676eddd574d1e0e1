// Package surveymeta models Quantipy survey metadata as returned by the
// Datasmoothie API and resolves display labels for variables and coded
// response values.
package surveymeta

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const libValuesPrefix = "lib@values@"

// Text maps a language key (e.g. "en-GB") to display text.
type Text map[string]string

// Get returns the text for lang, then fallback, then the non-empty entry
// with the smallest language key.
func (t Text) Get(lang, fallback string) string {
	if v, ok := t[lang]; ok && v != "" {
		return v
	}
	if v, ok := t[fallback]; ok && v != "" {
		return v
	}
	for _, key := range slices.Sorted(maps.Keys(t)) {
		if v := t[key]; v != "" {
			return v
		}
	}
	return ""
}

// Code is a coded response value. Quantipy codes are usually integers but
// string codes occur. String() gives the canonical form used in tables,
// and the JSON token kind is kept so "007" and 7 survive a round trip.
type Code struct {
	value  string
	quoted bool
}

// NumberCode is a code written as a JSON number.
func NumberCode(s string) Code {
	return Code{value: FormatNumber(s)}
}

// StringCode is a code written as a JSON string.
func StringCode(s string) Code {
	return Code{value: s, quoted: true}
}

func (c Code) String() string {
	return c.value
}

func (c Code) IsString() bool {
	return c.quoted
}

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = StringCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*c = NumberCode(n.String())
	return nil
}

func (c Code) MarshalJSON() ([]byte, error) {
	if c.quoted {
		return json.Marshal(c.value)
	}
	if c.value == "" {
		return []byte("null"), nil
	}
	return []byte(c.value), nil
}

// FormatNumber renders a JSON number the way codes are written in tables,
// "1.0" becomes "1".
func FormatNumber(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type Value struct {
	Value Code `json:"value"`
	Text  Text `json:"text"`
}

// Values is either an inline list of values or a reference of the form
// "lib@values@<name>" into the shared library.
type Values struct {
	Ref   string
	Items []Value
}

func (v *Values) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Values{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &v.Ref)
	}
	return json.Unmarshal(b, &v.Items)
}

func (v Values) MarshalJSON() ([]byte, error) {
	if v.Ref != "" {
		return json.Marshal(v.Ref)
	}
	if v.Items == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v.Items)
}

type Column struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Text       Text           `json:"text"`
	Values     Values         `json:"values"`
	Parent     map[string]any `json:"parent,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

type MaskItem struct {
	Source string `json:"source"`
	Text   Text   `json:"text"`
}

type Mask struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Text    Text       `json:"text"`
	Values  Values     `json:"values"`
	Items   []MaskItem `json:"items"`
	Subtype string     `json:"subtype,omitempty"`
}

type Lib struct {
	DefaultText string             `json:"default text"`
	Values      map[string][]Value `json:"values"`
}

type Meta struct {
	Info    map[string]any    `json:"info,omitempty"`
	Lib     Lib               `json:"lib"`
	Columns map[string]Column `json:"columns"`
	Masks   map[string]Mask   `json:"masks,omitempty"`
	Sets    map[string]any    `json:"sets,omitempty"`
	Type    string            `json:"type,omitempty"`
}

func Parse(b []byte) (Meta, error) {
	var m Meta
	err := json.Unmarshal(b, &m)
	return m, err
}

func (m Meta) DefaultLanguage() string {
	return m.Lib.DefaultText
}

func (m Meta) resolve(v Values) []Value {
	if v.Ref == "" {
		return v.Items
	}
	name := strings.TrimPrefix(v.Ref, libValuesPrefix)
	return m.Lib.Values[name]
}

// Values returns the coded values of a column or mask.
func (m Meta) Values(variable string) ([]Value, bool) {
	if col, ok := m.Columns[variable]; ok {
		return m.resolve(col.Values), true
	}
	if mask, ok := m.Masks[variable]; ok {
		return m.resolve(mask.Values), true
	}
	return nil, false
}

// VariableText returns the question text of a column or mask in lang,
// falling back to the default language and finally to the name itself.
func (m Meta) VariableText(variable, lang string) string {
	var text Text
	if col, ok := m.Columns[variable]; ok {
		text = col.Text
	} else if mask, ok := m.Masks[variable]; ok {
		text = mask.Text
	}
	if lang == "" {
		lang = m.DefaultLanguage()
	}
	if t := text.Get(lang, m.DefaultLanguage()); t != "" {
		return t
	}
	return variable
}

// ValueLabel resolves a coded value of variable to its display text.
// Codes missing from the value map resolve to "%" when they contain a
// percent sign and are returned unchanged otherwise.
func (m Meta) ValueLabel(variable, code, lang string) string {
	if lang == "" {
		lang = m.DefaultLanguage()
	}
	values, _ := m.Values(variable)
	for _, v := range values {
		if v.Value.String() != code {
			continue
		}
		if t := v.Text.Get(lang, m.DefaultLanguage()); t != "" {
			return t
		}
		return code
	}
	if strings.Contains(code, "%") {
		return "%"
	}
	return code
}

// In binds the metadata to a display language. An empty lang selects the
// metadata's default.
func (m Meta) In(lang string) Labels {
	if lang == "" {
		lang = m.DefaultLanguage()
	}
	return Labels{meta: m, lang: lang}
}

// Labels resolves labels in a single language.
type Labels struct {
	meta Meta
	lang string
}

func (l Labels) Language() string {
	return l.lang
}

func (l Labels) VariableText(variable string) string {
	return l.meta.VariableText(variable, l.lang)
}

func (l Labels) ValueLabel(variable, code string) string {
	return l.meta.ValueLabel(variable, code, l.lang)
}
