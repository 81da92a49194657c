package hqmf

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// Extractor turns the data criteria entries of an HQMF document into a
// resolved, pruned list of criteria. An Extractor holds no per-document
// state and is safe for concurrent use; every Extract call works on its own
// registry, occurrence map and reference set.
type Extractor struct {
	templates TemplateRegistry
	valueSets ValueSetMapper
	sources   SourceCriteriaHelper
	logger    zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(logger zerolog.Logger) Option {
	return func(x *Extractor) { x.logger = logger }
}

// WithSourceHelper replaces the default SignatureSourceHelper.
func WithSourceHelper(h SourceCriteriaHelper) Option {
	return func(x *Extractor) { x.sources = h }
}

// NewExtractor creates an Extractor backed by the given template registry
// and value-set mapper.
func NewExtractor(templates TemplateRegistry, valueSets ValueSetMapper, opts ...Option) *Extractor {
	x := &Extractor{
		templates: templates,
		valueSets: valueSets,
		sources:   SignatureSourceHelper{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Result is the outcome of one extraction.
type Result struct {
	Criteria       []*DataCriterion  `json:"data_criteria"`
	SourceCriteria []*DataCriterion  `json:"source_data_criteria"`
	Occurrences    map[string]string `json:"occurrences"`
	ReferenceIDs   []string          `json:"reference_ids"`
	Pruned         []string          `json:"pruned,omitempty"`
	Diagnostics    []Diagnostic      `json:"diagnostics,omitempty"`
}

// Criterion returns the surviving criterion with the given id, or nil.
func (r *Result) Criterion(id string) *DataCriterion {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// SourceCriterion returns the source criterion with the given id, or nil.
func (r *Result) SourceCriterion(id string) *DataCriterion {
	for _, c := range r.SourceCriteria {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// extraction is the document-scoped state of one Extract call.
type extraction struct {
	*Extractor
	registry    *Registry
	occurrences *OccurrenceMap
	references  *ReferenceSet
	// templatesByID indexes entry template ids by raw extension/root, for
	// occurrences whose own entry declares no template.
	templatesByID map[string][]string
	diagnostics   []Diagnostic
	logger        zerolog.Logger
}

func (x *Extractor) newExtraction(entries []*xmldoc.Element) *extraction {
	ex := &extraction{
		Extractor:     x,
		registry:      NewRegistry(),
		occurrences:   NewOccurrenceMap(),
		references:    NewReferenceSet(),
		templatesByID: make(map[string][]string, len(entries)),
		logger:        x.logger,
	}
	for _, entry := range entries {
		key := rawID(entry.Value("./*/cda:id/@extension"), entry.Value("./*/cda:id/@root"))
		if _, ok := ex.templatesByID[key]; !ok {
			ex.templatesByID[key] = entry.Values("./*/cda:templateId/cda:item/@root")
		}
	}
	return ex
}

func (x *extraction) diagnose(d Diagnostic) {
	x.diagnostics = append(x.diagnostics, d)
	x.logger.Warn().
		Str("code", d.Code).
		Str("entry_id", d.EntryID).
		Str("reference_id", d.ReferenceID).
		Msg(d.Message)
}

// Extract resolves entries, which must be in document order.
// populationRefs are criterion ids referenced from the population criteria;
// they protect those criteria from redundancy pruning.
func (x *Extractor) Extract(ctx context.Context, entries []*xmldoc.Element, populationRefs []string) (*Result, error) {
	ex := x.newExtraction(entries)
	sources, collapse := x.sources.DeriveSourceList(entries)
	sources = append([]string(nil), sources...)

	var criteria []*DataCriterion
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := ex.build(entry)
		if err != nil {
			return nil, err
		}
		ex.registry.InsertIfMoreSpecific(c)
		if canonical, ok := collapse[c.ID]; ok {
			c.SourceDataCriteria = canonical
		}
		criteria = append(criteria, c)

		if c.Variable {
			if grouper := ex.synthesizeGrouper(c); grouper != nil {
				ex.registry.Put(c)
				ex.registry.Put(grouper)
				criteria = append(criteria, grouper)
				sources = append(sources, grouper.ID)
			}
		}

		ex.references.Add(c.ChildrenCriteria...)
		for _, tr := range c.TemporalReferences {
			ex.references.Add(tr.Reference)
		}
	}
	ex.references.Add(populationRefs...)

	for _, c := range criteria {
		for _, child := range c.ChildrenCriteria {
			if ex.registry.Get(child) == nil {
				return nil, fatalf(c.ID, "dangling child reference %s", child)
			}
		}
	}

	sourceCriteria := ex.sourceCriteria(sources)
	kept, pruned := prune(criteria, ex.references)
	for _, c := range kept {
		finalize(c)
	}
	for _, c := range sourceCriteria {
		finalize(c)
	}
	ex.logger.Debug().
		Int("entries", len(entries)).
		Int("criteria", len(kept)).
		Int("pruned", len(pruned)).
		Msg("data criteria resolved")

	return &Result{
		Criteria:       kept,
		SourceCriteria: sourceCriteria,
		Occurrences:    ex.occurrences.Snapshot(),
		ReferenceIDs:   ex.references.IDs(),
		Pruned:         pruned,
		Diagnostics:    ex.diagnostics,
	}, nil
}

// build extracts one entry. The order of the steps matters: occurrence
// resolution needs the registry as left by earlier entries and type
// resolution needs the variable flag, children and occurrence.
func (x *extraction) build(entry *xmldoc.Element) (*DataCriterion, error) {
	c := preprocess(entry)
	extractNegation(c)
	if err := x.resolveOccurrence(c); err != nil {
		return nil, err
	}
	c.TemporalReferences = extractTemporalReferences(entry)
	if err := extractDerivationOperator(c); err != nil {
		return nil, err
	}

	var err error
	if c.FieldValues, err = extractFieldValues(entry, c.Negation); err != nil {
		return nil, &DataError{EntryID: c.ID, Reason: "field values", Err: err}
	}
	c.ChildrenCriteria = extractChildren(entry)
	c.Variable = isVariable(c.LocalVariableName, c.rawID)
	if c.SubsetOperators, err = extractSubsetOperators(entry); err != nil {
		return nil, &DataError{EntryID: c.ID, Reason: "subset operators", Err: err}
	}
	if c.Value, err = extractValue(entry); err != nil {
		return nil, &DataError{EntryID: c.ID, Reason: "value", Err: err}
	}
	c.EffectiveTime = parseEffectiveTime(entry.FindOne("./*/cda:effectiveTime"))

	if err := x.resolveType(c); err != nil {
		return nil, err
	}
	if err := x.postProcess(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (x *extraction) postProcess(c *DataCriterion) error {
	if err := x.applyValueSetMappings(c); err != nil {
		return err
	}
	if c.CodeListID == "" {
		c.CodeListID = c.entry.Value(c.codeListPath + "/@valueSet")
	}
	c.InlineCodeList = inlineCodeList(c)

	// Grouping criteria without templates are plain unions or intersections.
	if len(c.templateIDs) == 0 {
		if c.DerivationOperator == CrossProduct {
			c.DerivationOperator = Intersect
		}
		if c.Description == "" {
			if c.DerivationOperator == Intersect {
				c.Description = "Intersect"
			} else {
				c.Description = "Union"
			}
		}
	}
	x.markSpecificVariable(c)
	return nil
}

// applyValueSetMappings lets the value-set mapping of the entry's templates
// move the code list path and supply the result value. A specific
// occurrence without templates borrows those of its source entry.
func (x *extraction) applyValueSetMappings(c *DataCriterion) error {
	templateIDs := c.templateIDs
	if len(templateIDs) == 0 && c.SpecificOccurrence != "" {
		if inherited := x.templatesByID[rawID(c.sourceExt, c.sourceRoot)]; len(inherited) > 0 {
			templateIDs = inherited[:1]
		}
	}
	for _, id := range templateIDs {
		mapping, ok := x.valueSets.MappingForTemplate(id)
		if !ok {
			continue
		}
		if mapping.ValueSetPath != "" && c.entry.Has(mapping.ValueSetPath+"[@valueSet]") {
			c.codeListPath = mapping.ValueSetPath
		}
		if mapping.ResultPath != "" {
			v, err := parseValue(c.entry, mapping.ResultPath)
			if err != nil {
				return &DataError{EntryID: c.ID, Reason: fmt.Sprintf("result of template %s", id), Err: err}
			}
			if v != nil {
				c.Value = v
			}
		}
	}
	return nil
}

// markSpecificVariable flags derived criteria that only re-expose their
// source criterion. They take over the source's operators and description
// and are never wrapped in a grouper.
func (x *extraction) markSpecificVariable(c *DataCriterion) {
	if !c.Definition.Is(DefinitionDerived) {
		return
	}
	if len(c.ChildrenCriteria) == 0 && c.SourceDataCriteria != "" {
		c.ChildrenCriteria = []string{c.SourceDataCriteria}
	}
	if len(c.ChildrenCriteria) != 1 {
		return
	}
	if c.SourceDataCriteria != "" && c.ChildrenCriteria[0] != c.SourceDataCriteria {
		return
	}
	ref := x.registry.Get(c.ChildrenCriteria[0])
	if ref == nil {
		return
	}
	c.doNotGroup = true
	if len(c.SubsetOperators) == 0 {
		c.SubsetOperators = append([]SubsetOperator(nil), ref.SubsetOperators...)
	}
	if c.DerivationOperator == DerivationNone {
		c.DerivationOperator = ref.DerivationOperator
	}
	c.Description = ref.Description
	c.Variable = ref.Variable
}

// isGroupID reports whether id names a synthetic grouper.
func isGroupID(id string) bool {
	return strings.HasPrefix(id, GroupPrefix)
}
