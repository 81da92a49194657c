package hqmf

import (
	"strings"

	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

// Reserved identifiers.
const (
	// MeasurePeriodID is the temporal reference target for the whole
	// measurement period. It never counts as a criterion reference.
	MeasurePeriodID = "MeasurePeriod"
	// GroupPrefix prefixes the id of a synthetic variable grouper.
	GroupPrefix = "GROUP_"
)

// NormalizeID turns an HQMF identifier into a criterion id. Characters other
// than ASCII letters, digits and underscores become underscores and ids that
// would start with a digit get a "prefix_" prefix.
func NormalizeID(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw) + len("prefix_"))
	if raw[0] >= '0' && raw[0] <= '9' {
		b.WriteString("prefix_")
	}
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
			b.WriteByte(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// rawID joins an extension and root the way the documents reference each other.
func rawID(extension, root string) string {
	return extension + "_" + root
}

// referenceID resolves an id element (extension + root) to a criterion id.
// It returns "" for an id element without extension and root.
func referenceID(id *xmldoc.Element) string {
	if id == nil {
		return ""
	}
	ext := id.Value("@extension")
	root := id.Value("@root")
	if ext == "" && root == "" {
		return ""
	}
	normalized := NormalizeID(rawID(ext, root))
	if strings.HasPrefix(normalized, "measureperiod") {
		return MeasurePeriodID
	}
	return normalized
}
