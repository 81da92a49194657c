package hqmf

import (
	"sort"
	"strings"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// SignatureSourceHelper is the default SourceCriteriaHelper. Plain entries
// (no children, temporal references, subsets, occurrences or variable
// marker) that share templates, code list, status and negation describe the
// same source data and collapse onto the first of them.
type SignatureSourceHelper struct{}

func (SignatureSourceHelper) DeriveSourceList(entries []*xmldoc.Element) ([]string, map[string]string) {
	var sources []string
	collapse := make(map[string]string)
	listed := make(map[string]bool)
	canonical := make(map[string]string)

	for _, entry := range entries {
		raw := rawID(entry.Value("./*/cda:id/@extension"), entry.Value("./*/cda:id/@root"))
		id := NormalizeID(raw)
		if id == "" {
			continue
		}
		if sig, ok := sourceSignature(entry, raw); ok {
			if first, seen := canonical[sig]; seen && first != id {
				collapse[id] = first
				continue
			}
			canonical[sig] = id
		}
		if !listed[id] {
			listed[id] = true
			sources = append(sources, id)
		}
	}
	return sources, collapse
}

func sourceSignature(entry *xmldoc.Element, raw string) (string, bool) {
	plain := !entry.Has("./*/cda:outboundRelationship[@typeCode='COMP']") &&
		!entry.Has("./*/cda:outboundRelationship[@typeCode='OCCR']") &&
		!entry.Has("./*/cda:temporallyRelatedInformation") &&
		!entry.Has("./*/cda:excerpt") &&
		!entry.Has("./cda:grouperCriteria") &&
		!isVariable(entry.Value("./cda:localVariableName/@value"), raw)
	if !plain {
		return "", false
	}
	templates := entry.Values("./*/cda:templateId/cda:item/@root")
	valueSet := entry.Value(defaultCodePath + "/@valueSet")
	if len(templates) == 0 || valueSet == "" {
		return "", false
	}
	sort.Strings(templates)
	return strings.Join([]string{
		strings.Join(templates, ","),
		valueSet,
		entry.Value("./*/cda:statusCode/@code"),
		entry.Value("./*/@actionNegationInd"),
		entry.Value(`./*/cda:outboundRelationship/*/cda:code[@code="` + reasonCode + `"]/../cda:value/@valueSet`),
	}, "|"), true
}

// sourceCriteria snapshots the listed source criteria. The snapshots are
// detached from the resolved criteria, so a source stays listed after
// pruning removes its criterion. Temporal references and subset operators
// qualify a use of the source data and are left out.
func (x *extraction) sourceCriteria(ids []string) []*DataCriterion {
	out := make([]*DataCriterion, 0, len(ids))
	for _, id := range ids {
		c := x.registry.Get(id)
		if c == nil {
			continue
		}
		s := *c
		s.FieldValues = cloneFields(c.FieldValues)
		s.ChildrenCriteria = append([]string(nil), c.ChildrenCriteria...)
		s.Comments = append([]string(nil), c.Comments...)
		s.TemporalReferences = nil
		s.SubsetOperators = nil
		out = append(out, &s)
	}
	return out
}

// NoSourceHelper lists no source criteria and collapses nothing.
type NoSourceHelper struct{}

func (NoSourceHelper) DeriveSourceList([]*xmldoc.Element) ([]string, map[string]string) {
	return nil, nil
}
