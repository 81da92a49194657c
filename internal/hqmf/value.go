package hqmf

import (
	"encoding/json"
	"fmt"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// ValueKind discriminates the Value variants.
type ValueKind string

const (
	ValueSimple    ValueKind = "simple"
	ValueRange     ValueKind = "range"
	ValueCoded     ValueKind = "coded"
	ValueAny       ValueKind = "any"
	ValueReference ValueKind = "reference"
)

// Value is a typed criterion value or field value: *Simple, *Range, *Coded,
// *AnyValue or, for the fulfills field only, *TypedReference.
type Value interface {
	Kind() ValueKind
}

// Simple is a single physical quantity, timestamp or integer.
type Simple struct {
	Type      string `json:"type"`
	Value     string `json:"value,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Inclusive bool   `json:"inclusive,omitempty"`
}

// Range is an interval with optional bounds and width.
type Range struct {
	Type  string  `json:"type"`
	Low   *Simple `json:"low,omitempty"`
	High  *Simple `json:"high,omitempty"`
	Width *Simple `json:"width,omitempty"`
}

// Coded is a concept reference, either a literal code or a value set.
type Coded struct {
	Type         string `json:"type"`
	System       string `json:"system,omitempty"`
	Code         string `json:"code,omitempty"`
	ValueSet     string `json:"code_list_id,omitempty"`
	DisplayName  string `json:"title,omitempty"`
	NullFlavor   string `json:"null_flavor,omitempty"`
	OriginalText string `json:"original_text,omitempty"`
}

// AnyValue matches any non-null value.
type AnyValue struct {
	Type string `json:"type"`
}

// TypedReference points at another criterion instead of carrying a value.
type TypedReference struct {
	Type      string `json:"type,omitempty"`
	Mood      string `json:"mood,omitempty"`
	Reference string `json:"reference"`
}

func (*Simple) Kind() ValueKind         { return ValueSimple }
func (*Range) Kind() ValueKind          { return ValueRange }
func (*Coded) Kind() ValueKind          { return ValueCoded }
func (*AnyValue) Kind() ValueKind       { return ValueAny }
func (*TypedReference) Kind() ValueKind { return ValueReference }

func newAnyValue() *AnyValue {
	return &AnyValue{Type: "ANYNonNull"}
}

// EffectiveTime is a timestamp interval.
type EffectiveTime struct {
	Low   *Simple `json:"low,omitempty"`
	High  *Simple `json:"high,omitempty"`
	Width *Simple `json:"width,omitempty"`
}

// parseValue reads the value element at path below node. A missing element
// or one without a type tag yields nil; an unrecognized type tag is fatal.
func parseValue(node *xmldoc.Element, path string) (Value, error) {
	def := node.FindOne(path)
	if def == nil {
		return nil, nil
	}
	if def.Value("@flavorId") == "ANY.NONNULL" {
		return newAnyValue(), nil
	}
	typ, ok := def.Attr("@xsi:type")
	if !ok {
		return nil, nil
	}
	switch typ {
	case "PQ":
		return parseSimple(def, "PQ", true), nil
	case "TS":
		return parseSimple(def, "PQ", false), nil
	case "IVL_PQ", "IVL_INT":
		return parseRange(def, "PQ"), nil
	case "CD":
		return parseCoded(def), nil
	case "ANY", "IVL_TS":
		return newAnyValue(), nil
	default:
		return nil, fmt.Errorf("unknown value type [%s]", typ)
	}
}

func parseSimple(def *xmldoc.Element, defaultType string, forceInclusive bool) *Simple {
	if def == nil {
		return nil
	}
	v := &Simple{
		Type:  def.Value("@xsi:type"),
		Value: def.Value("@value"),
		Unit:  def.Value("@unit"),
	}
	if v.Type == "" {
		v.Type = defaultType
	}
	if v.Unit == "days" {
		v.Unit = "d"
	}
	v.Inclusive = forceInclusive || def.Value("@inclusive") == "true"
	return v
}

func parseRange(def *xmldoc.Element, defaultType string) *Range {
	r := &Range{Type: def.Value("@xsi:type")}
	if r.Type == "" {
		r.Type = "IVL_PQ"
	}
	r.Low = parseSimple(def.FindOne("./cda:low"), defaultType, false)
	r.High = parseSimple(def.FindOne("./cda:high"), defaultType, false)
	r.Width = parseSimple(def.FindOne("./cda:width"), defaultType, false)

	if r.Low != nil && (def.Value("@lowClosed") == "true" || r.High != nil && r.Low.Value == r.High.Value) {
		r.Low.Inclusive = true
	}
	if r.High != nil && (def.Value("@highClosed") == "true" || r.Low != nil && r.Low.Value == r.High.Value) {
		r.High.Inclusive = true
	}
	return r
}

func parseCoded(def *xmldoc.Element) *Coded {
	c := &Coded{
		Type:         def.Value("@xsi:type"),
		System:       def.Value("@codeSystem"),
		Code:         def.Value("@code"),
		ValueSet:     def.Value("@valueSet"),
		DisplayName:  def.Value("./cda:displayName/@value"),
		NullFlavor:   def.Value("@nullFlavor"),
		OriginalText: def.Value("./cda:originalText/@value"),
	}
	if c.Type == "" {
		c.Type = "CD"
	}
	return c
}

func parseTypedReference(def *xmldoc.Element) *TypedReference {
	return &TypedReference{
		Type:      def.Value("@classCode"),
		Mood:      def.Value("@moodCode"),
		Reference: referenceID(def.FindOne("./cda:id")),
	}
}

func parseEffectiveTime(def *xmldoc.Element) *EffectiveTime {
	if def == nil {
		return nil
	}
	et := &EffectiveTime{
		Low:   parseSimple(def.FindOne("./cda:low"), "TS", false),
		High:  parseSimple(def.FindOne("./cda:high"), "TS", false),
		Width: parseSimple(def.FindOne("./cda:width"), "PQ", false),
	}
	if et.Low == nil && et.High == nil && et.Width == nil {
		return nil
	}
	return et
}

// valueJSON is the wire form of a Value.
type valueJSON struct {
	Kind ValueKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalValue encodes v with its kind so DecodeValue can restore it.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.Kind(), Data: data})
}

// DecodeValue is the inverse of MarshalValue.
func DecodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env valueJSON
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	var v Value
	switch env.Kind {
	case ValueSimple:
		v = &Simple{}
	case ValueRange:
		v = &Range{}
	case ValueCoded:
		v = &Coded{}
	case ValueAny:
		v = &AnyValue{}
	case ValueReference:
		v = &TypedReference{}
	default:
		return nil, fmt.Errorf("decode value: unknown kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}
