package hqmf

import "github.com/ehr/hqmf/internal/platform/xmldoc"

// TemplateDefinition is what a template registry knows about a template id.
type TemplateDefinition struct {
	Definition string `yaml:"definition" json:"definition"`
	Status     string `yaml:"status" json:"status"`
}

// KnownTemplate describes the effect of one of the built-in sentinel
// templates.
type KnownTemplate struct {
	// Definition replaces the current definition when set.
	Definition Definition
	// DefaultDefinition applies only when no definition is resolved yet.
	DefaultDefinition Definition
	// Operator replaces the derivation operator when set.
	Operator DerivationOperator
	// IntersectCrossProduct turns an existing CrossProduct into Intersect.
	IntersectCrossProduct bool
	Variable              bool
	ClearNegation         bool
}

// TemplateRegistry resolves entry template ids to definitions.
type TemplateRegistry interface {
	Lookup(templateID, revision string) (TemplateDefinition, bool)
	LookupKnown(templateID string) (KnownTemplate, bool)
}

// ValueSetMapping redirects where a template keeps its code list and result.
type ValueSetMapping struct {
	ValueSetPath string `yaml:"valueset_path" json:"valueset_path"`
	ResultPath   string `yaml:"result_path" json:"result_path"`
}

// ValueSetMapper looks up the value-set mapping of a template id.
type ValueSetMapper interface {
	MappingForTemplate(templateID string) (ValueSetMapping, bool)
}

// SourceCriteriaHelper derives the source data criteria of a document and
// the map collapsing equivalent criteria onto one canonical source id.
type SourceCriteriaHelper interface {
	DeriveSourceList(entries []*xmldoc.Element) (sources []string, collapse map[string]string)
}

// Sentinel template ids.
const (
	VariableTemplate     = "0.1.2.3.4.5.6.7.8.9.1"
	SatisfiesAnyTemplate = "2.16.840.1.113883.10.20.28.3.108"
	SatisfiesAllTemplate = "2.16.840.1.113883.10.20.28.3.109"
)

// LookupSentinelTemplate returns the built-in behaviour of the variable,
// satisfies-any and satisfies-all templates.
func LookupSentinelTemplate(templateID string) (KnownTemplate, bool) {
	switch templateID {
	case VariableTemplate:
		return KnownTemplate{
			DefaultDefinition:     Def(DefinitionDerived),
			IntersectCrossProduct: true,
			Variable:              true,
			ClearNegation:         true,
		}, true
	case SatisfiesAnyTemplate:
		return KnownTemplate{Definition: Def(DefinitionSatisfiesAny), ClearNegation: true}, true
	case SatisfiesAllTemplate:
		return KnownTemplate{Definition: Def(DefinitionSatisfiesAll), Operator: Intersect, ClearNegation: true}, true
	}
	return KnownTemplate{}, false
}
