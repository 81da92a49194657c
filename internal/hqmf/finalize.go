package hqmf

import (
	"regexp"
	"strings"
)

var valueSetTitle = regexp.MustCompile(`(.*) \w+ [Vv]alue [Ss]et`)

// finalize settles the presentation attributes of a surviving criterion and
// drops its extraction state. Nothing mutates c afterwards.
func finalize(c *DataCriterion) {
	if c.Definition.Is(DefinitionTransferFrom) || c.Definition.Is(DefinitionTransferTo) {
		transferAsField(c)
	}
	if !c.Variable && c.DerivationOperator == DerivationNone {
		polishTitleAndDescription(c)
	}
	if c.DerivationOperator != DerivationNone {
		c.CodeListID = ""
	}
	c.Title = c.title()

	c.entry = nil
	c.templateIDs = nil
}

// polishTitleAndDescription drops the trailing "<word> Value Set" from the
// title and appends the shortened title to the description.
func polishTitleAndDescription(c *DataCriterion) {
	title := c.title()
	words := strings.Split(title, " ")
	exact := ""
	if len(words) > 3 {
		exact = strings.Join(words[:len(words)-3], " ")
	}
	if c.Definition.IsPatientCharacteristic() && !strings.HasSuffix(title, "Value Set") {
		exact = title
	}
	if m := valueSetTitle.FindStringSubmatch(title); len(m) > 1 {
		c.explicitTitle = m[1]
	}
	c.Description = c.Description + ": " + exact
}

// transferAsField models transfers as a field value carrying the code list.
func transferAsField(c *DataCriterion) {
	codeList := c.CodeListID
	c.CodeListID = ""
	if codeList == "" && c.entry != nil {
		codeList = c.entry.Value("./" + criteriaGlob + "/cda:outboundRelationship/" + criteriaGlob + "/cda:value/@valueSet")
	}
	if c.FieldValues == nil {
		c.FieldValues = make(map[string]Value)
	}
	c.FieldValues[strings.ToUpper(c.Definition.String())] = &Coded{
		Type:        "CD",
		ValueSet:    codeList,
		DisplayName: c.title(),
	}
}
