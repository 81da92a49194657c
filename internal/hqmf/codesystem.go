package hqmf

// Code system OIDs.
const (
	OIDLOINC       = "2.16.840.1.113883.6.1"
	OIDSNOMED      = "2.16.840.1.113883.6.96"
	OIDRxNorm      = "2.16.840.1.113883.6.88"
	OIDICD9CM      = "2.16.840.1.113883.6.103"
	OIDICD10CM     = "2.16.840.1.113883.6.90"
	OIDICD10PCS    = "2.16.840.1.113883.6.4"
	OIDCPT         = "2.16.840.1.113883.6.12"
	OIDCVX         = "2.16.840.1.113883.12.292"
	OIDHCPCS       = "2.16.840.1.113883.6.285"
	OIDAdminGender = "2.16.840.1.113883.5.1"
	OIDCDCRace     = "2.16.840.1.113883.6.238"
	OIDSOP         = "2.16.840.1.113883.3.221.5"
)

var codeSystemNames = map[string]string{
	OIDLOINC:       "LOINC",
	OIDSNOMED:      "SNOMED-CT",
	OIDRxNorm:      "RxNorm",
	OIDICD9CM:      "ICD-9-CM",
	OIDICD10CM:     "ICD-10-CM",
	OIDICD10PCS:    "ICD-10-PCS",
	OIDCPT:         "CPT",
	OIDCVX:         "CVX",
	OIDHCPCS:       "HCPCS",
	OIDAdminGender: "AdministrativeGender",
	OIDCDCRace:     "CDC Race",
	OIDSOP:         "SOP",
}

// CodeSystemName returns the display name of a code system OID, or the OID
// itself when it is not known.
func CodeSystemName(oid string) string {
	if name, ok := codeSystemNames[oid]; ok {
		return name
	}
	return oid
}

// inlineCodeList returns the literal code of c keyed by code system, for
// criteria that name a single code instead of a value set.
func inlineCodeList(c *DataCriterion) map[string][]string {
	if c.entry == nil {
		return nil
	}
	system := c.entry.Value(c.codeListPath + "/@codeSystem")
	if system != "" {
		system = CodeSystemName(system)
	} else {
		system = c.entry.Value(c.codeListPath + "/@codeSystemName")
	}
	code := c.entry.Value(c.codeListPath + "/@code")
	if system == "" || code == "" {
		return nil
	}
	return map[string][]string{system: {code}}
}
