package measure

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hqmf/internal/hqmf"
)

// Measure maps to the measure table: one imported HQMF document and its
// extraction result.
type Measure struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	HQMFID        string        `db:"hqmf_id" json:"hqmf_id"`
	SetID         string        `db:"set_id" json:"set_id,omitempty"`
	Version       int           `db:"version" json:"version"`
	CMSID         string        `db:"cms_id" json:"cms_id,omitempty"`
	Title         string        `db:"title" json:"title"`
	Description   string        `db:"description" json:"description,omitempty"`
	PeriodLow     string        `db:"period_low" json:"period_low,omitempty"`
	PeriodHigh    string        `db:"period_high" json:"period_high,omitempty"`
	ContentSHA256 string        `db:"content_sha256" json:"content_sha256"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	Document      *hqmf.Measure `db:"result" json:"document,omitempty"`
}

// FromDocument builds the row for a parsed document.
func FromDocument(doc *hqmf.Measure, digest string) *Measure {
	m := &Measure{
		HQMFID:        doc.ID,
		SetID:         doc.SetID,
		Version:       doc.Version,
		CMSID:         doc.CMSID,
		Title:         doc.Title,
		Description:   doc.Description,
		ContentSHA256: digest,
		Document:      doc,
	}
	if doc.Period != nil {
		if doc.Period.Low != nil {
			m.PeriodLow = doc.Period.Low.Value
		}
		if doc.Period.High != nil {
			m.PeriodHigh = doc.Period.High.Value
		}
	}
	return m
}

// Criteria returns the extracted data criteria, or nil for a summary row.
func (m *Measure) Criteria() []*hqmf.DataCriterion {
	if m.Document == nil || m.Document.Result == nil {
		return nil
	}
	return m.Document.Criteria
}

// Summary drops the document, for list responses.
func (m *Measure) Summary() *Measure {
	s := *m
	s.Document = nil
	return &s
}
