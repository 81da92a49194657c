package hqmf

import (
	"regexp"
	"strings"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

const (
	criteriaGlob    = `*[substring(local-name(), string-length(local-name()) - 7) = 'Criteria']`
	defaultCodePath = "./*/cda:code"
	resultCode      = "394617004"
	reasonCode      = "410666004"
)

var (
	variableMarker        = regexp.MustCompile(`qdm_var_`)
	occurrenceOfMarker    = regexp.MustCompile(`Occurrence[A-Z]of`)
	variableNameSuffix    = regexp.MustCompile(`_[^_]+$`)
	unsuffixedVariable    = regexp.MustCompile(`^(SATISFIES ALL|SATISFIES ANY|UNION|INTERSECTION)`)
	conjunctionDerivation = map[string]DerivationOperator{
		"OR":  Union,
		"AND": CrossProduct,
	}
)

// preprocess reads the plain attributes of an entry: status, ids, comments,
// template ids, local variable name and description.
func preprocess(entry *xmldoc.Element) *DataCriterion {
	c := &DataCriterion{
		entry:        entry,
		codeListPath: defaultCodePath,
		Status:       entry.Value("./*/cda:statusCode/@code"),
	}
	c.rawID = rawID(entry.Value("./*/cda:id/@extension"), entry.Value("./*/cda:id/@root"))
	c.ID = NormalizeID(c.rawID)
	c.Comments = entry.Values("./" + criteriaGlob + "/cda:text/cda:xml/cda:qdmUserComments/cda:item/text()")
	c.templateIDs = entry.Values("./*/cda:templateId/cda:item/@root")
	c.LocalVariableName = entry.Value("./cda:localVariableName/@value")
	c.Description = describe(entry, c.LocalVariableName, c.rawID)
	return c
}

// isVariable reports whether the local variable name or raw id carries the
// qdm_var_ marker of a measure variable.
func isVariable(localVariableName, rawID string) bool {
	return variableMarker.MatchString(localVariableName) || variableMarker.MatchString(rawID)
}

func describe(entry *xmldoc.Element, localVariableName, rawID string) string {
	if isVariable(localVariableName, rawID) {
		if name := variableDescription(localVariableName); name != "" {
			return name
		}
		return entry.Value("./" + criteriaGlob + "/cda:id/@extension")
	}
	for _, path := range []string{"/cda:text/@value", "/cda:title/@value", "/cda:id/@extension"} {
		if v, ok := entry.Attr("./" + criteriaGlob + path); ok {
			return v
		}
	}
	return ""
}

// variableDescription decodes the variable name an authoring tool stores in
// localVariableName.
func variableDescription(encoded string) string {
	switch {
	case strings.HasPrefix(encoded, "qdm_var_"):
		name := strings.TrimPrefix(encoded, "qdm_var_")
		name = occurrenceOfMarker.ReplaceAllString(name, "")
		// Names exported before variable hints keep their last segment.
		if !unsuffixedVariable.MatchString(name) {
			name = variableNameSuffix.ReplaceAllString(name, "")
		}
		return name
	case strings.HasPrefix(encoded, "localVar_"):
		return strings.TrimPrefix(encoded, "localVar_")
	}
	return ""
}

func extractNegation(c *DataCriterion) {
	c.Negation = c.entry.Value("./*/@actionNegationInd") == "true"
	if c.Negation {
		c.NegationCodeListID = c.entry.Value(`./*/cda:outboundRelationship/*/cda:code[@code="` + reasonCode + `"]/../cda:value/@valueSet`)
	}
}

func extractChildren(entry *xmldoc.Element) []string {
	var out []string
	for _, id := range entry.FindAll("./*/cda:outboundRelationship[@typeCode='COMP']/cda:criteriaReference/cda:id") {
		if ref := referenceID(id); ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

func extractDerivationOperator(c *DataCriterion) error {
	var op DerivationOperator
	for _, code := range c.entry.Values("./*/cda:outboundRelationship[@typeCode='COMP']/cda:conjunctionCode/@code") {
		next := conjunctionDerivation[code]
		if op != DerivationNone && op != next {
			return fatalf(c.ID, "more than one derivation operator in data criteria")
		}
		op = next
	}
	c.DerivationOperator = op
	return nil
}

func extractTemporalReferences(entry *xmldoc.Element) []TemporalReference {
	var out []TemporalReference
	for _, tr := range entry.FindAll("./*/cda:temporallyRelatedInformation") {
		ref := TemporalReference{
			Type:      tr.Value("@typeCode"),
			Reference: referenceID(tr.FindOne("./*/cda:id")),
		}
		if delta := tr.FindOne("./qdm:temporalInformation/qdm:delta"); delta != nil {
			ref.Range = parseRange(delta, "PQ")
		}
		out = append(out, ref)
	}
	return out
}

func extractSubsetOperators(entry *xmldoc.Element) ([]SubsetOperator, error) {
	var out []SubsetOperator
	for _, ex := range entry.FindAll("./*/cda:excerpt") {
		op := SubsetOperator{Type: ex.Value("./cda:subsetCode/@code")}
		if op.Type == string(Union) || op.Type == string(CrossProduct) {
			continue
		}
		if repeat := ex.FindOne("./*/cda:repeatNumber"); repeat != nil {
			op.Value = parseRange(repeat, "INT")
		} else {
			v, err := parseValue(ex, "./*/cda:value")
			if err != nil {
				return nil, err
			}
			op.Value = v
		}
		out = append(out, op)
	}
	return out, nil
}
