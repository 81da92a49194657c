package hqmf

import (
	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// valueFields maps the code of an outbound relationship (or the class code
// of a participation role) to the field it populates.
var valueFields = map[string]string{
	"371909000":       "ABNORMAL_INDICATOR",
	"399423000":       "ADMISSION_DATETIME",
	"91723000":        "ANATOMICAL_STRUCTURE",
	"263496004":       "ANATOMICAL_LOCATION_SITE",
	"261773006":       "CUMULATIVE_MEDICATION_DURATION",
	"442864001":       "DISCHARGE_DATETIME",
	"309039003":       "DISCHARGE_STATUS",
	"398232005":       "DOSE",
	"SDLOC":           "FACILITY_LOCATION",
	"SDLOC_ARRIVAL":   "FACILITY_LOCATION_ARRIVAL_DATETIME",
	"SDLOC_DEPARTURE": "FACILITY_LOCATION_DEPARTURE_DATETIME",
	"260864003":       "FREQUENCY",
	"34896006":        "INCISION_DATETIME",
	"182353008":       "LATERALITY",
	"183797002":       "LENGTH_OF_STAY",
	"414679001":       "METHOD",
	"398201009":       "START_DATETIME",
	"117363000":       "ORDINAL",
	"PAT_PREF":        "PATIENT_PREFERENCE",
	"8319008":         "PRINCIPAL_DIAGNOSIS",
	"PROV_PREF":       "PROVIDER_PREFERENCE",
	"410666004":       "REASON",
	"118292001":       "REMOVAL_DATETIME",
	"385676005":       "RESULT",
	"263513008":       "ROUTE",
	"SEV":             "SEVERITY",
	"33999-4":         "STATUS",
	"397898000":       "STOP_DATETIME",
	"TRANSFER_FROM":   "TRANSFER_FROM",
	"TRANSFER_TO":     "TRANSFER_TO",
	"405795006":       "TARGET_OUTCOME",
}

// extractFieldValues reads the named attributes of an entry. Negated
// criteria carry their reason as the negation code list, not as a field.
func extractFieldValues(entry *xmldoc.Element, negation bool) (map[string]Value, error) {
	fields := make(map[string]Value)

	for _, rel := range entry.FindAll("./*/cda:outboundRelationship[*/cda:code]") {
		name, ok := valueFields[rel.Value("./*/cda:code/@code")]
		if !ok || (negation && name == "REASON") {
			continue
		}
		v, err := parseValue(rel, "./*/cda:value")
		if err != nil {
			return nil, err
		}
		if v == nil {
			if v, err = parseValue(rel, "./*/cda:effectiveTime"); err != nil {
				return nil, err
			}
		}
		if v != nil {
			fields[name] = v
		}
	}

	for _, rel := range entry.FindAll("./*/cda:outboundRelationship[*/cda:participation]") {
		name, ok := valueFields[rel.Value("./*/cda:participation/cda:role/@classCode")]
		if !ok {
			continue
		}
		if code := rel.FindOne("./*/cda:participation/cda:role/cda:code"); code != nil {
			fields[name] = parseCoded(code)
		}
	}

	if ref := entry.FindOne(`./*/cda:outboundRelationship[@typeCode="FLFS"]/cda:criteriaReference`); ref != nil {
		fields["FLFS"] = parseTypedReference(ref)
	}

	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// extractValue reads the entry value from the value element or, for
// criteria without one, from the result relationship.
func extractValue(entry *xmldoc.Element) (Value, error) {
	v, err := parseValue(entry, "./*/cda:value")
	if err != nil || v != nil {
		return v, err
	}
	return parseValue(entry, "./*/cda:outboundRelationship/cda:code[@code='"+resultCode+"']/../cda:value")
}
