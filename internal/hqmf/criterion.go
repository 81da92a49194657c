package hqmf

import (
	"encoding/json"
	"sort"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// DerivationOperator combines the children of a criterion.
type DerivationOperator string

const (
	DerivationNone DerivationOperator = ""
	Union          DerivationOperator = "UNION"
	CrossProduct   DerivationOperator = "XPRODUCT"
	Intersect      DerivationOperator = "INTERSECT"
)

// TemporalReference relates a criterion to another criterion or to the
// measure period.
type TemporalReference struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Range     *Range `json:"range,omitempty"`
}

// SubsetOperator selects a subset (FIRST, MOST RECENT, COUNT...) of the
// events matched by a criterion.
type SubsetOperator struct {
	Type  string `json:"type"`
	Value Value  `json:"-"`
}

type subsetOperatorJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (s SubsetOperator) MarshalJSON() ([]byte, error) {
	out := subsetOperatorJSON{Type: s.Type}
	if s.Value != nil {
		raw, err := MarshalValue(s.Value)
		if err != nil {
			return nil, err
		}
		out.Value = raw
	}
	return json.Marshal(out)
}

func (s *SubsetOperator) UnmarshalJSON(data []byte) error {
	var in subsetOperatorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v, err := DecodeValue(in.Value)
	if err != nil {
		return err
	}
	*s = SubsetOperator{Type: in.Type, Value: v}
	return nil
}

// DataCriterion is one typed clinical data requirement of a measure.
type DataCriterion struct {
	ID                      string              `json:"id"`
	Title                   string              `json:"title,omitempty"`
	Description             string              `json:"description,omitempty"`
	CodeListID              string              `json:"code_list_id,omitempty"`
	InlineCodeList          map[string][]string `json:"inline_code_list,omitempty"`
	Definition              Definition          `json:"definition"`
	Status                  string              `json:"status,omitempty"`
	Value                   Value               `json:"-"`
	FieldValues             map[string]Value    `json:"-"`
	EffectiveTime           *EffectiveTime      `json:"effective_time,omitempty"`
	TemporalReferences      []TemporalReference `json:"temporal_references,omitempty"`
	SubsetOperators         []SubsetOperator    `json:"subset_operators,omitempty"`
	DerivationOperator      DerivationOperator  `json:"derivation_operator,omitempty"`
	ChildrenCriteria        []string            `json:"children_criteria,omitempty"`
	Negation                bool                `json:"negation"`
	NegationCodeListID      string              `json:"negation_code_list_id,omitempty"`
	SpecificOccurrence      string              `json:"specific_occurrence,omitempty"`
	SpecificOccurrenceConst string              `json:"specific_occurrence_const,omitempty"`
	SourceDataCriteria      string              `json:"source_data_criteria,omitempty"`
	Variable                bool                `json:"variable"`
	LocalVariableName       string              `json:"local_variable_name,omitempty"`
	Comments                []string            `json:"comments,omitempty"`

	// Extraction state, dropped once the document is resolved.
	entry         *xmldoc.Element
	rawID         string
	templateIDs   []string
	codeListPath  string
	explicitTitle string
	sourceExt     string
	sourceRoot    string
	doNotGroup    bool
	synthetic     bool
}

// title returns the human readable title: an explicit one first, then the
// code display name, the description and finally the id.
func (c *DataCriterion) title() string {
	if c.explicitTitle != "" {
		return c.explicitTitle
	}
	if c.entry != nil && c.codeListPath != "" {
		if name := c.entry.Value(c.codeListPath + "/cda:displayName/@value"); name != "" {
			return name
		}
	}
	if c.Description != "" {
		return c.Description
	}
	return c.ID
}

// IsGrouper reports whether the criterion is a synthetic variable grouper.
func (c *DataCriterion) IsGrouper() bool {
	return c.synthetic
}

func (c *DataCriterion) sortedChildren() []string {
	out := append([]string(nil), c.ChildrenCriteria...)
	sort.Strings(out)
	return out
}

type criterionAlias DataCriterion

type criterionJSON struct {
	*criterionAlias
	Value       json.RawMessage            `json:"value,omitempty"`
	FieldValues map[string]json.RawMessage `json:"field_values,omitempty"`
}

func (c *DataCriterion) MarshalJSON() ([]byte, error) {
	out := criterionJSON{criterionAlias: (*criterionAlias)(c)}
	if c.Value != nil {
		raw, err := MarshalValue(c.Value)
		if err != nil {
			return nil, err
		}
		out.Value = raw
	}
	if len(c.FieldValues) > 0 {
		out.FieldValues = make(map[string]json.RawMessage, len(c.FieldValues))
		for name, v := range c.FieldValues {
			raw, err := MarshalValue(v)
			if err != nil {
				return nil, err
			}
			out.FieldValues[name] = raw
		}
	}
	return json.Marshal(out)
}

func (c *DataCriterion) UnmarshalJSON(data []byte) error {
	in := criterionJSON{criterionAlias: (*criterionAlias)(c)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v, err := DecodeValue(in.Value)
	if err != nil {
		return err
	}
	c.Value = v
	c.FieldValues = nil
	if len(in.FieldValues) > 0 {
		c.FieldValues = make(map[string]Value, len(in.FieldValues))
		for name, raw := range in.FieldValues {
			fv, err := DecodeValue(raw)
			if err != nil {
				return err
			}
			c.FieldValues[name] = fv
		}
	}
	return nil
}
