package hqmf

import (
	"bytes"
	"encoding/json"
	"strings"
)

// protectedDefinitions survive pruning even when nothing references them.
var protectedDefinitions = map[DefinitionKind]bool{
	DefinitionPatientCharacteristicEthnicity: true,
	DefinitionPatientCharacteristicGender:    true,
	DefinitionPatientCharacteristicPayer:     true,
	DefinitionPatientCharacteristicRace:      true,
}

// prune removes criteria that nothing references and that another
// surviving criterion already covers. Criteria are checked in order against
// the criteria still kept, so of two identical criteria the last survives.
func prune(criteria []*DataCriterion, refs *ReferenceSet) (kept []*DataCriterion, pruned []string) {
	removed := make([]bool, len(criteria))
	for i, c := range criteria {
		if refs.Contains(c.ID) || protectedDefinitions[c.Definition.Kind] {
			continue
		}
		for j, other := range criteria {
			if i == j || removed[j] {
				continue
			}
			if c.CodeListID == other.CodeListID && coveredBy(c, other) {
				removed[i] = true
				pruned = append(pruned, c.ID)
				break
			}
		}
	}
	for i, c := range criteria {
		if !removed[i] {
			kept = append(kept, c)
		}
	}
	return kept, pruned
}

// coveredBy reports whether other carries everything c does, making c a
// redundant copy.
func coveredBy(c, other *DataCriterion) bool {
	if c.Definition != other.Definition || c.Status != other.Status {
		return false
	}
	if strings.Join(c.sortedChildren(), ",") != strings.Join(other.sortedChildren(), ",") {
		return false
	}
	if c.Variable || c.DerivationOperator != DerivationNone ||
		len(c.SubsetOperators) > 0 || len(c.TemporalReferences) > 0 {
		return false
	}
	if c.Value != nil && !sameJSON(c.Value, other.Value) {
		return false
	}
	if len(c.FieldValues) > 0 && !sameJSON(c.FieldValues, other.FieldValues) {
		return false
	}
	return c.NegationCodeListID == "" || c.NegationCodeListID == other.NegationCodeListID
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
