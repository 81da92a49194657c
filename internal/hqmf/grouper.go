package hqmf

// synthesizeGrouper wraps the variable c in a derived union criterion with
// id GROUP_<id>. It returns nil when the variable needs no wrapper.
func (x *extraction) synthesizeGrouper(c *DataCriterion) *DataCriterion {
	if !c.Variable {
		return nil
	}
	if c.doNotGroup {
		x.inlineReference(c)
		return nil
	}

	// A variable that only points at another grouper takes over that
	// grouper's content instead of nesting a second wrapper.
	if len(c.ChildrenCriteria) == 1 && isGroupID(c.ChildrenCriteria[0]) {
		ref := x.follow(c.ChildrenCriteria[0])
		if ref == nil {
			return nil
		}
		copyReferenceInfo(c, ref)
		c.Definition = ref.Definition
		c.Status = ref.Status
		c.ChildrenCriteria = nil
	}

	id := GroupPrefix + c.ID
	return &DataCriterion{
		ID:                 id,
		Description:        c.Description,
		Definition:         Def(DefinitionDerived),
		DerivationOperator: Union,
		ChildrenCriteria:   []string{id},
		SourceDataCriteria: c.ID,
		LocalVariableName:  c.LocalVariableName,
		Comments:           c.Comments,

		entry:        c.entry,
		rawID:        c.rawID,
		templateIDs:  c.templateIDs,
		codeListPath: c.codeListPath,
		synthetic:    true,
	}
}

// inlineReference handles a variable that is not wrapped: its single child
// is redirected to the child's grouper when there is one, otherwise the
// variable takes over the child's content.
func (x *extraction) inlineReference(c *DataCriterion) {
	if len(c.ChildrenCriteria) != 1 || c.ChildrenCriteria[0] == "" {
		return
	}
	child := c.ChildrenCriteria[0]
	if x.registry.Get(GroupPrefix+child) != nil {
		c.ChildrenCriteria = []string{GroupPrefix + child}
		return
	}
	ref := x.registry.Get(child)
	if ref == nil {
		return
	}
	copyReferenceInfo(c, ref)
	c.ChildrenCriteria = append([]string(nil), ref.ChildrenCriteria...)
	if c.DerivationOperator == DerivationNone && len(c.ChildrenCriteria) > 0 {
		c.DerivationOperator = ref.DerivationOperator
	}
}

// copyReferenceInfo fills the unset attributes of c from ref.
func copyReferenceInfo(c, ref *DataCriterion) {
	if c.explicitTitle == "" {
		c.explicitTitle = ref.title()
	}
	if c.Definition.IsZero() {
		c.Definition = ref.Definition
	}
	if c.Status == "" {
		c.Status = ref.Status
	}
	if c.CodeListID == "" {
		c.CodeListID = ref.CodeListID
	}
	if len(c.TemporalReferences) == 0 {
		c.TemporalReferences = append([]TemporalReference(nil), ref.TemporalReferences...)
	}
	if len(c.SubsetOperators) == 0 {
		c.SubsetOperators = append([]SubsetOperator(nil), ref.SubsetOperators...)
	}
	c.Variable = c.Variable || ref.Variable
	if c.Value == nil {
		c.Value = ref.Value
	}
}
