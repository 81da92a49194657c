package hqmf

// Registry indexes the criteria of one document by id.
type Registry struct {
	byID map[string]*DataCriterion
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*DataCriterion)}
}

// InsertIfMoreSpecific registers c unless an earlier criterion with the same
// id carries a code list and c does not. It reports whether c was stored.
func (r *Registry) InsertIfMoreSpecific(c *DataCriterion) bool {
	if existing, ok := r.byID[c.ID]; ok && existing.CodeListID != "" && c.CodeListID == "" {
		return false
	}
	r.byID[c.ID] = c
	return true
}

// Put registers c unconditionally.
func (r *Registry) Put(c *DataCriterion) {
	r.byID[c.ID] = c
}

// Get returns the criterion registered under id, or nil.
func (r *Registry) Get(id string) *DataCriterion {
	if id == "" {
		return nil
	}
	return r.byID[id]
}

func (r *Registry) Len() int {
	return len(r.byID)
}

// OccurrenceMap assigns occurrence letters to source criteria. The first
// letter claimed for a source sticks.
type OccurrenceMap struct {
	letters map[string]string
}

func NewOccurrenceMap() *OccurrenceMap {
	return &OccurrenceMap{letters: make(map[string]string)}
}

// Claim records letter for source unless one is already recorded, and
// returns the letter in effect.
func (m *OccurrenceMap) Claim(source, letter string) string {
	if existing, ok := m.letters[source]; ok {
		return existing
	}
	m.letters[source] = letter
	return letter
}

func (m *OccurrenceMap) Lookup(source string) (string, bool) {
	letter, ok := m.letters[source]
	return letter, ok
}

// Snapshot copies the map.
func (m *OccurrenceMap) Snapshot() map[string]string {
	out := make(map[string]string, len(m.letters))
	for k, v := range m.letters {
		out[k] = v
	}
	return out
}

// ReferenceSet collects the ids referenced from children and temporal
// references, in first-seen order.
type ReferenceSet struct {
	seen  map[string]struct{}
	order []string
}

func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{seen: make(map[string]struct{})}
}

// Add records ids, skipping blanks and the measure period.
func (s *ReferenceSet) Add(ids ...string) {
	for _, id := range ids {
		if id == "" || id == MeasurePeriodID {
			continue
		}
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (s *ReferenceSet) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *ReferenceSet) IDs() []string {
	return append([]string(nil), s.order...)
}
