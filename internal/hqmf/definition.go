package hqmf

// TemplateRevision is the template registry revision of HQMF R2 documents.
const TemplateRevision = "r2"

// entryTypeDefinitions maps the legacy definition codes found in
// definition/*/id/@extension to definitions.
var entryTypeDefinitions = map[string]DefinitionKind{
	"Problem":    DefinitionDiagnosis,
	"Problems":   DefinitionDiagnosis,
	"Encounter":  DefinitionEncounter,
	"Encounters": DefinitionEncounter,
	"LabResults": DefinitionLaboratoryTest,
	"Results":    DefinitionLaboratoryTest,
	"Procedure":  DefinitionProcedure,
	"Procedures": DefinitionProcedure,
	"Derived":    DefinitionDerived,
}

// demographicDefinitions maps the observation code of a Demographics entry.
var demographicDefinitions = map[string]DefinitionKind{
	"21112-8":   DefinitionPatientCharacteristicBirthdate,
	"424144002": DefinitionPatientCharacteristicAge,
	"263495000": DefinitionPatientCharacteristicGender,
	"102902016": DefinitionPatientCharacteristicLanguages,
	"125680007": DefinitionPatientCharacteristicMaritalStatus,
	"103579009": DefinitionPatientCharacteristicRace,
}

// resolveType determines the definition of c: template ids first, the
// entry's definition code otherwise.
func (x *extraction) resolveType(c *DataCriterion) error {
	if x.resolveFromTemplates(c) {
		return nil
	}
	return x.resolveFromDefinition(c)
}

// resolveFromTemplates applies every recognized template id in order, so
// the last registry match decides the definition.
func (x *extraction) resolveFromTemplates(c *DataCriterion) bool {
	found := false
	for _, id := range c.templateIDs {
		if def, ok := x.templates.Lookup(id, TemplateRevision); ok {
			c.Definition = ParseDefinition(def.Definition)
			c.Status = def.Status
			found = true
			continue
		}
		known, ok := x.templates.LookupKnown(id)
		if !ok {
			continue
		}
		applyKnownTemplate(c, known)
		found = true
	}
	return found
}

func applyKnownTemplate(c *DataCriterion, known KnownTemplate) {
	if known.IntersectCrossProduct && c.DerivationOperator == CrossProduct {
		c.DerivationOperator = Intersect
	}
	if known.Operator != DerivationNone {
		c.DerivationOperator = known.Operator
	}
	if !known.Definition.IsZero() {
		c.Definition = known.Definition
	} else if c.Definition.IsZero() {
		c.Definition = known.DefaultDefinition
	}
	if known.Variable {
		c.Variable = true
	}
	if known.ClearNegation {
		c.Negation = false
	}
}

func (x *extraction) resolveFromDefinition(c *DataCriterion) error {
	if c.Variable && c.SpecificOccurrence != "" {
		x.pullFromReferencedVariable(c)
	}
	if c.entry.Has("./cda:grouperCriteria") {
		if c.Definition.IsZero() {
			c.Definition = Def(DefinitionDerived)
		}
		return nil
	}

	code := c.entry.Value("./*/cda:definition/*/cda:id/@extension")
	if code == "" {
		x.copyFromReference(c)
		return nil
	}
	if IsKnownDefinition(code) {
		c.Definition = ParseDefinition(code)
		return nil
	}
	switch code {
	case "Medication", "Medications":
		c.Definition = Def(DefinitionMedication)
		if c.Status == "" {
			c.Status = "active"
		}
		return nil
	case "RX":
		c.Definition = Def(DefinitionMedication)
		if c.Status == "" {
			c.Status = "dispensed"
		}
		return nil
	case "Demographics":
		demographic := c.entry.Value("./cda:observationCriteria/cda:code/@code")
		kind, ok := demographicDefinitions[demographic]
		if !ok {
			return fatalf(c.ID, "unknown demographic identifier [%s]", demographic)
		}
		c.Definition = Def(kind)
		return nil
	}
	if kind, ok := entryTypeDefinitions[code]; ok {
		c.Definition = Def(kind)
		return nil
	}
	return fatalf(c.ID, "unknown data criteria template identifier [%s]", code)
}

// firstReferenceID returns the id of the first criteria reference of the
// entry's outbound relationships.
func firstReferenceID(c *DataCriterion) string {
	return referenceID(c.entry.FindOne("./*/cda:outboundRelationship/cda:criteriaReference/cda:id"))
}

// copyFromReference resolves an entry without a definition code, which is a
// pointer to another criterion. Without a resolvable target it becomes a
// "variable" placeholder.
func (x *extraction) copyFromReference(c *DataCriterion) {
	refID := firstReferenceID(c)
	if ref := x.registry.Get(refID); ref != nil {
		c.Definition = ref.Definition
		c.Status = ref.Status
		if c.SpecificOccurrence != "" {
			c.explicitTitle = ref.title()
			c.Description = ref.Description
			c.CodeListID = ref.CodeListID
		}
		return
	}
	if !c.Variable {
		x.diagnose(Diagnostic{
			Code:        DiagMissingReference,
			EntryID:     c.ID,
			ReferenceID: refID,
			Message:     "referenced data criteria not found",
		})
	}
	c.Definition = Def(DefinitionVariable)
}

// pullFromReferencedVariable fills a specific occurrence of a variable from
// the criterion it references. A reference without children stands for a
// single criterion and is kept as the only child.
func (x *extraction) pullFromReferencedVariable(c *DataCriterion) {
	ref := x.follow(firstReferenceID(c))
	if ref == nil {
		return
	}
	if len(ref.ChildrenCriteria) == 0 {
		c.ChildrenCriteria = []string{ref.ID}
		return
	}
	c.FieldValues = cloneFields(ref.FieldValues)
	c.TemporalReferences = append([]TemporalReference(nil), ref.TemporalReferences...)
	c.SubsetOperators = append([]SubsetOperator(nil), ref.SubsetOperators...)
	c.DerivationOperator = ref.DerivationOperator
	c.Definition = ref.Definition
	c.Description = ref.Description
	c.Status = ref.Status
	c.ChildrenCriteria = append([]string(nil), ref.ChildrenCriteria...)
}

// follow resolves id to a criterion, stepping from synthetic groupers to the
// variable they wrap. The walk is bounded by the registry size and stops on
// a cycle.
func (x *extraction) follow(id string) *DataCriterion {
	seen := make(map[string]bool)
	for steps := 0; steps <= x.registry.Len(); steps++ {
		c := x.registry.Get(id)
		if c == nil || !c.IsGrouper() {
			return c
		}
		if seen[id] || c.SourceDataCriteria == "" {
			return c
		}
		seen[id] = true
		id = c.SourceDataCriteria
	}
	return nil
}

func cloneFields(fields map[string]Value) map[string]Value {
	if fields == nil {
		return nil
	}
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
