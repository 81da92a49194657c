// Package templates maps HQMF entry template ids to QDM definitions and
// value-set locations. The built-in table is embedded; deployments can
// replace or extend it with a YAML file of the same shape.
package templates

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ehr/hqmf/internal/hqmf"
	"github.com/ehr/hqmf/internal/platform/xmldoc"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Revision the registry answers for when an entry does not carry one.
const defaultRevision = hqmf.TemplateRevision

type templateEntry struct {
	ID       string `yaml:"id"`
	Revision string `yaml:"revision"`

	hqmf.TemplateDefinition `yaml:",inline"`
}

type valueSetEntry struct {
	ID string `yaml:"id"`

	hqmf.ValueSetMapping `yaml:",inline"`
}

type file struct {
	Templates []templateEntry `yaml:"templates"`
	ValueSets []valueSetEntry `yaml:"valuesets"`
}

type key struct {
	id       string
	revision string
}

// Registry implements hqmf.TemplateRegistry and hqmf.ValueSetMapper. It is
// read-only after construction.
type Registry struct {
	templates map[key]hqmf.TemplateDefinition
	valueSets map[string]hqmf.ValueSetMapping
}

// Default returns the registry built from the embedded table.
func Default() *Registry {
	r, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("templates: embedded table: %v", err))
	}
	return r
}

// Load reads the embedded table and overlays the file at path on it. An
// empty path returns the embedded table alone.
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	if err := r.merge(data); err != nil {
		return nil, fmt.Errorf("templates: %s: %w", path, err)
	}
	return r, nil
}

// Parse builds a registry from YAML alone.
func Parse(data []byte) (*Registry, error) {
	r := &Registry{
		templates: make(map[key]hqmf.TemplateDefinition),
		valueSets: make(map[string]hqmf.ValueSetMapping),
	}
	if err := r.merge(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) merge(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for i, t := range f.Templates {
		if t.ID == "" {
			return fmt.Errorf("template %d: missing id", i)
		}
		if t.Definition == "" {
			return fmt.Errorf("template %s: missing definition", t.ID)
		}
		if !hqmf.IsKnownDefinition(t.Definition) {
			return fmt.Errorf("template %s: unknown definition %q", t.ID, t.Definition)
		}
		rev := t.Revision
		if rev == "" {
			rev = defaultRevision
		}
		r.templates[key{t.ID, rev}] = t.TemplateDefinition
	}
	for i, v := range f.ValueSets {
		if v.ID == "" {
			return fmt.Errorf("valueset %d: missing id", i)
		}
		if err := checkPaths(v.ValueSetPath, valueSetPathForms); err != nil {
			return fmt.Errorf("valueset %s: valueset_path: %w", v.ID, err)
		}
		if err := checkPaths(v.ResultPath, resultPathForms); err != nil {
			return fmt.Errorf("valueset %s: result_path: %w", v.ID, err)
		}
		r.valueSets[v.ID] = v.ValueSetMapping
	}
	return nil
}

// Suffixes the extractor appends to a mapped path before querying it.
var (
	valueSetPathForms = []string{"", "[@valueSet]", "/@valueSet", "/@code", "/@codeSystem", "/@codeSystemName", "/cda:displayName/@value"}
	resultPathForms   = []string{""}
)

func checkPaths(path string, suffixes []string) error {
	if path == "" {
		return nil
	}
	for _, suffix := range suffixes {
		if _, err := xmldoc.Compile(path + suffix); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Lookup(templateID, revision string) (hqmf.TemplateDefinition, bool) {
	def, ok := r.templates[key{templateID, revision}]
	return def, ok
}

func (r *Registry) LookupKnown(templateID string) (hqmf.KnownTemplate, bool) {
	return hqmf.LookupSentinelTemplate(templateID)
}

func (r *Registry) MappingForTemplate(templateID string) (hqmf.ValueSetMapping, bool) {
	m, ok := r.valueSets[templateID]
	return m, ok
}

// Len reports the number of template definitions.
func (r *Registry) Len() int {
	return len(r.templates)
}
