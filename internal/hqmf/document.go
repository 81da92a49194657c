package hqmf

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

const (
	documentRoot       = "/cda:QualityMeasureDocument"
	dataCriteriaPath   = documentRoot + "/cda:component/cda:dataCriteriaSection/cda:entry"
	populationSection  = "//cda:populationCriteriaSection"
	measureIdentifier  = "eMeasure Identifier"
	defaultPeriodLow   = "201201010000"
	defaultPeriodHigh  = "201212312359"
	defaultPeriodWidth = "1"
)

// ErrNotHQMF is returned for XML documents that are not an HQMF R2 quality
// measure document.
var ErrNotHQMF = errors.New("hqmf: not a QualityMeasureDocument")

// ErrInvalidMeasurePeriod is returned when the measure period bounds are not
// HL7 timestamps or the period ends before it starts.
var ErrInvalidMeasurePeriod = errors.New("hqmf: invalid measure period")

// MeasureAttribute is one subjectOf/measureAttribute of a measure.
type MeasureAttribute struct {
	ID    string `json:"id,omitempty"`
	Code  string `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Measure is a parsed HQMF quality measure document.
type Measure struct {
	ID          string             `json:"id"`
	SetID       string             `json:"set_id,omitempty"`
	Version     int                `json:"version"`
	CMSID       string             `json:"cms_id,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Period      *EffectiveTime     `json:"measure_period"`
	Attributes  []MeasureAttribute `json:"attributes,omitempty"`
	*Result
}

// Parser reads whole measure documents and runs data criteria extraction on
// them.
type Parser struct {
	extractor     *Extractor
	defaultPeriod bool
	concurrency   int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDefaultMeasurePeriod makes the parser ignore the document's measure
// period and use calendar year 2012.
func WithDefaultMeasurePeriod(enabled bool) ParserOption {
	return func(p *Parser) { p.defaultPeriod = enabled }
}

// WithConcurrency bounds the number of documents ParseBatch works on at once.
func WithConcurrency(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func NewParser(extractor *Extractor, opts ...ParserOption) *Parser {
	p := &Parser{extractor: extractor, concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses one HQMF document.
func (p *Parser) Parse(ctx context.Context, data []byte) (*Measure, error) {
	doc, err := xmldoc.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("hqmf: parse document: %w", err)
	}
	return p.ParseDocument(ctx, doc)
}

// ParseDocument runs extraction on an already parsed document.
func (p *Parser) ParseDocument(ctx context.Context, doc *xmldoc.Element) (*Measure, error) {
	root := doc.FindOne(documentRoot)
	if root == nil {
		return nil, ErrNotHQMF
	}

	m := &Measure{
		ID:          identifier(root.FindOne("./cda:id")),
		SetID:       identifier(root.FindOne("./cda:setId")),
		Title:       root.Value("./cda:title/@value"),
		Description: root.Value("./cda:text/@value"),
	}
	m.Version, _ = strconv.Atoi(root.Value("./cda:versionNumber/@value"))
	m.Attributes, m.CMSID = measureAttributes(root, m.Version)
	period, err := p.measurePeriod(root)
	if err != nil {
		return nil, err
	}
	m.Period = period

	result, err := p.extractor.Extract(ctx, doc.FindAll(dataCriteriaPath), populationReferences(doc))
	if err != nil {
		return nil, err
	}
	m.Result = result
	return m, nil
}

// ParseBatch parses independent documents concurrently. Every document gets
// its own extraction state; the first failure cancels the rest.
func (p *Parser) ParseBatch(ctx context.Context, docs [][]byte) ([]*Measure, error) {
	measures := make([]*Measure, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, data := range docs {
		g.Go(func() error {
			m, err := p.Parse(ctx, data)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			measures[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return measures, nil
}

// identifier prefers the id extension and falls back to the upper-cased root.
func identifier(id *xmldoc.Element) string {
	if id == nil {
		return ""
	}
	if ext := id.Value("@extension"); ext != "" {
		return ext
	}
	return strings.ToUpper(id.Value("@root"))
}

func measureAttributes(root *xmldoc.Element, version int) ([]MeasureAttribute, string) {
	var (
		attrs []MeasureAttribute
		cmsID string
	)
	for _, attr := range root.FindAll("./cda:subjectOf/cda:measureAttribute") {
		a := MeasureAttribute{
			ID:    attr.Value("./cda:id/@root"),
			Code:  attr.Value("./cda:code/@code"),
			Name:  attr.Value("./cda:code/cda:displayName/@value"),
			Value: attr.Value("./cda:value/@value"),
		}
		if a.Code == "" {
			a.Code = attr.Value("./cda:code/@nullFlavor")
		}
		if a.Name == "" {
			a.Name = attr.Value("./cda:code/cda:originalText/@value")
		}
		if a.Value == "" && attr.Value("./cda:value/@xsi:type") == "II" {
			a.Value = attr.Value("./cda:value/@extension")
		}
		if strings.Contains(a.Name, measureIdentifier) && a.Value != "" {
			cmsID = fmt.Sprintf("CMS%sv%d", a.Value, version)
		}
		attrs = append(attrs, a)
	}
	return attrs, cmsID
}

func (p *Parser) measurePeriod(root *xmldoc.Element) (*EffectiveTime, error) {
	if p.defaultPeriod {
		return DefaultMeasurePeriod(), nil
	}
	period := parseEffectiveTime(root.FindOne("./cda:controlVariable/cda:measurePeriod/cda:value"))
	if period == nil {
		return DefaultMeasurePeriod(), nil
	}
	if err := checkPeriodBounds(period); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMeasurePeriod, err)
	}
	return period, nil
}

func checkPeriodBounds(period *EffectiveTime) error {
	var low, high time.Time
	var err error
	if period.Low != nil && period.Low.Value != "" {
		if low, err = xmldoc.ParseHL7Time(period.Low.Value); err != nil {
			return fmt.Errorf("low: %w", err)
		}
	}
	if period.High != nil && period.High.Value != "" {
		if high, err = xmldoc.ParseHL7Time(period.High.Value); err != nil {
			return fmt.Errorf("high: %w", err)
		}
	}
	if !low.IsZero() && !high.IsZero() && high.Before(low) {
		return fmt.Errorf("high %s is before low %s", period.High.Value, period.Low.Value)
	}
	return nil
}

// DefaultMeasurePeriod is calendar year 2012, the period measures are
// evaluated over when a document does not name one.
func DefaultMeasurePeriod() *EffectiveTime {
	return &EffectiveTime{
		Low:   &Simple{Type: "TS", Value: defaultPeriodLow},
		High:  &Simple{Type: "TS", Value: defaultPeriodHigh},
		Width: &Simple{Type: "PQ", Value: defaultPeriodWidth, Unit: "a"},
	}
}

// populationReferences lists the data criteria the population criteria
// point at. Preconditions that reference another population are skipped.
func populationReferences(doc *xmldoc.Element) []string {
	populations := make(map[string]bool)
	for _, id := range doc.FindAll(populationSection + "/cda:component[@typeCode='COMP']/*/cda:id") {
		populations[NormalizeID(rawID(id.Value("@extension"), id.Value("@root")))] = true
	}
	var refs []string
	for _, id := range doc.FindAll(populationSection + "//cda:precondition//cda:criteriaReference/cda:id") {
		ref := referenceID(id)
		if ref == "" || populations[ref] {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}
