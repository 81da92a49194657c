package hqmf

import (
	"strings"
)

const (
	variableOccurrenceHead = "occ"
	occurrenceHead         = "Occurrence"
)

// OccurrenceLetter extracts the occurrence letter a measure authoring tool
// encoded into an entry's id or local variable name. All arguments are
// normalized ids; sourceExt is the normalized extension of the referenced
// source criterion.
//
// Variables use the occ<L>of_qdm_var_ form, everything else
// Occurrence<L>_<source> on the id, Occurrence<L>of<source> on the local
// variable name, and finally Occurrence<L>_ on the source itself.
func OccurrenceLetter(id, localVariableName, sourceExt string, variable bool) (string, bool) {
	if variable {
		if l, ok := taggedLetter(id, variableOccurrenceHead, "of_qdm_var_"); ok {
			return l, true
		}
		return taggedLetter(localVariableName, variableOccurrenceHead, "of_qdm_var")
	}
	if l, ok := taggedLetter(id, occurrenceHead, "_"+sourceExt); ok {
		return l, true
	}
	if l, ok := taggedLetter(localVariableName, occurrenceHead, "of"+sourceExt); ok {
		return l, true
	}
	return taggedLetter(sourceExt, occurrenceHead, "_")
}

// taggedLetter matches s against head, one upper-case letter, then tail, and
// returns the letter.
func taggedLetter(s, head, tail string) (string, bool) {
	if !strings.HasPrefix(s, head) || len(s) <= len(head) {
		return "", false
	}
	letter := s[len(head)]
	if letter < 'A' || letter > 'Z' {
		return "", false
	}
	if !strings.HasPrefix(s[len(head)+1:], tail) {
		return "", false
	}
	return string(letter), true
}

// resolveOccurrence handles the occurrence (OCCR) or source relationship of
// c's entry.
func (x *extraction) resolveOccurrence(c *DataCriterion) error {
	entry := c.entry
	if occr := entry.FindOne(`./*/cda:outboundRelationship[@typeCode="OCCR"]`); occr != nil {
		c.sourceExt = occr.Value("./cda:criteriaReference/cda:id/@extension")
		c.sourceRoot = occr.Value("./cda:criteriaReference/cda:id/@root")
		source := NormalizeID(rawID(c.sourceExt, c.sourceRoot))

		// Occurrences only make sense once the source criterion is known.
		if x.registry.Get(source) == nil {
			return nil
		}
		hint := occr.Value("./cda:localVariableName/@controlInformationExtension")
		hintConst := occr.Value("./cda:localVariableName/@controlInformationRoot")
		variable := isVariable(c.LocalVariableName, c.rawID)

		c.SourceDataCriteria = source
		letter, found := OccurrenceLetter(c.ID, NormalizeID(c.LocalVariableName), NormalizeID(c.sourceExt), variable)
		switch {
		case found:
			x.occurrences.Claim(source, letter)
			c.SpecificOccurrence = firstNonEmpty(hint, letter)
			c.SpecificOccurrenceConst = strings.ToUpper(source)
		case hint != "":
			x.occurrences.Claim(source, hint)
			c.SpecificOccurrence = hint
		default:
			if variable {
				x.occurrences.Claim(source, "A")
			}
			mapped, ok := x.occurrences.Lookup(source)
			if !ok {
				return fatalf(c.ID, "could not find occurrence mapping for %s, %s", c.sourceExt, c.sourceRoot)
			}
			c.SpecificOccurrence = mapped
		}
		if c.SpecificOccurrence == "" {
			c.SpecificOccurrence = "A"
		}
		if c.SpecificOccurrenceConst == "" {
			c.SpecificOccurrenceConst = NormalizeID(hintConst)
		}
		if c.SpecificOccurrenceConst == "" {
			c.SpecificOccurrenceConst = strings.ToUpper(source)
		}
		return nil
	}

	if src := entry.FindOne(`./*/cda:outboundRelationship[cda:subsetCode/@code="SOURCE"]`); src != nil {
		c.SourceDataCriteria = NormalizeID(rawID(
			src.Value("./cda:criteriaReference/cda:id/@extension"),
			src.Value("./cda:criteriaReference/cda:id/@root"),
		))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
