package hqmf

import (
	"context"
	"testing"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

const (
	encounterPerformed = "2.16.840.1.113883.10.20.28.3.23"
	diagnosisActive    = "2.16.840.1.113883.10.20.28.3.5"
	genderTemplate     = "2.16.840.1.113883.10.20.28.3.55"
	labPerformed       = "2.16.840.1.113883.10.20.28.3.39"
)

type fakeTemplates struct {
	defs     map[string]TemplateDefinition
	mappings map[string]ValueSetMapping
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{
		defs: map[string]TemplateDefinition{
			encounterPerformed: {Definition: "encounter", Status: "performed"},
			diagnosisActive:    {Definition: "diagnosis", Status: "active"},
			genderTemplate:     {Definition: "patient_characteristic_gender"},
			labPerformed:       {Definition: "laboratory_test", Status: "performed"},
		},
		mappings: map[string]ValueSetMapping{
			genderTemplate: {ValueSetPath: "./*/cda:value"},
			labPerformed:   {ResultPath: "./*/cda:value"},
		},
	}
}

func (f *fakeTemplates) Lookup(templateID, revision string) (TemplateDefinition, bool) {
	if revision != TemplateRevision {
		return TemplateDefinition{}, false
	}
	def, ok := f.defs[templateID]
	return def, ok
}

func (f *fakeTemplates) LookupKnown(templateID string) (KnownTemplate, bool) {
	return LookupSentinelTemplate(templateID)
}

func (f *fakeTemplates) MappingForTemplate(templateID string) (ValueSetMapping, bool) {
	m, ok := f.mappings[templateID]
	return m, ok
}

func newTestExtractor(opts ...Option) *Extractor {
	f := newFakeTemplates()
	return NewExtractor(f, f, opts...)
}

// measureDoc wraps data criteria entries and population criteria into a
// measure document.
func measureDoc(entries, populations string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<QualityMeasureDocument xmlns="urn:hl7-org:v3" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:qdm="urn:hhs-qdm:hqmf-r2-extensions:v1">
  <id root="40280381-3d61-56a7-013e-66bc02da4dee" extension="measure-1"/>
  <setId root="abc-set"/>
  <versionNumber value="3"/>
  <title value="Test Measure"/>
  <text value="A measure used in tests."/>
  <component>
    <dataCriteriaSection>` + entries + `
    </dataCriteriaSection>
  </component>
  <component>
    <populationCriteriaSection>` + populations + `
    </populationCriteriaSection>
  </component>
</QualityMeasureDocument>`
}

func parseEntries(t *testing.T, entries string) []*xmldoc.Element {
	t.Helper()
	doc, err := xmldoc.ParseBytes([]byte(measureDoc(entries, "")))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc.FindAll(dataCriteriaPath)
}

func extract(t *testing.T, entries string, populationRefs ...string) *Result {
	t.Helper()
	res, err := newTestExtractor().Extract(context.Background(), parseEntries(t, entries), populationRefs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func extractErr(t *testing.T, entries string) error {
	t.Helper()
	_, err := newTestExtractor().Extract(context.Background(), parseEntries(t, entries), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	return err
}

// encounter is an encounter performed entry with id <ext>_1.
func encounter(ext, valueSet string) string {
	return `
      <entry typeCode="DRIV">
        <encounterCriteria classCode="ENC" moodCode="EVN">
          <templateId><item root="` + encounterPerformed + `"/></templateId>
          <id root="1" extension="` + ext + `"/>
          <code valueSet="` + valueSet + `"/>
          <title value="Encounter, Performed"/>
        </encounterCriteria>
      </entry>`
}

func ids(criteria []*DataCriterion) []string {
	out := make([]string, len(criteria))
	for i, c := range criteria {
		out[i] = c.ID
	}
	return out
}
