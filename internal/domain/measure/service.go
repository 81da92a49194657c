package measure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/hqmf/internal/hqmf"
	"github.com/ehr/hqmf/internal/platform/cache"
	"github.com/ehr/hqmf/internal/platform/metrics"
)

// ErrInvalidDocument wraps parse failures that are not fatal extraction
// errors: malformed XML or a document that is not HQMF.
var ErrInvalidDocument = errors.New("invalid hqmf document")

var ErrUnknownDefinition = errors.New("unknown data criteria definition")

// DocumentParser turns raw HQMF bytes into a measure. *hqmf.Parser
// satisfies it.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte) (*hqmf.Measure, error)
}

type Service struct {
	repo     MeasureRepository
	parser   DocumentParser
	cache    cache.Store
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

type ServiceOption func(*Service)

// WithCache stores extraction results keyed by document digest.
func WithCache(store cache.Store, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(repo MeasureRepository, parser DocumentParser, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, parser: parser, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract parses a document without storing it. The second return value
// reports whether the result came from the cache.
func (s *Service) Extract(ctx context.Context, data []byte) (*hqmf.Measure, bool, error) {
	key := cache.ExtractionKey(data)
	if m := s.cached(ctx, key); m != nil {
		s.metrics.ObserveDocument(metrics.OutcomeCached, len(m.Criteria), len(m.Pruned), len(m.Diagnostics), 0)
		return m, true, nil
	}

	start := time.Now()
	m, err := s.parser.Parse(ctx, data)
	elapsed := time.Since(start)
	if err != nil {
		if hqmf.IsFatal(err) {
			s.metrics.ObserveDocument(metrics.OutcomeFatal, 0, 0, 0, elapsed)
			return nil, false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		s.metrics.ObserveDocument(metrics.OutcomeInvalid, 0, 0, 0, elapsed)
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	s.metrics.ObserveDocument(metrics.OutcomeExtracted, len(m.Criteria), len(m.Pruned), len(m.Diagnostics), elapsed)

	s.store(ctx, key, m)
	return m, false, nil
}

func (s *Service) cached(ctx context.Context, key string) *hqmf.Measure {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("extraction cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	m := &hqmf.Measure{}
	if err := json.Unmarshal(raw, m); err != nil || m.Result == nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil
	}
	return m
}

func (s *Service) store(ctx context.Context, key string, m *hqmf.Measure) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode extraction result")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("extraction cache write failed")
	}
}

// Import extracts a document and stores it. Re-importing identical bytes
// returns the stored measure and created=false.
func (s *Service) Import(ctx context.Context, data []byte) (m *Measure, created bool, err error) {
	digest := cache.Digest(data)
	existing, err := s.repo.GetByDigest(ctx, digest)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("lookup measure by digest: %w", err)
	}

	doc, _, err := s.Extract(ctx, data)
	if err != nil {
		return nil, false, err
	}

	m = FromDocument(doc, digest)
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, false, fmt.Errorf("store measure: %w", err)
	}
	s.logger.Info().
		Str("measure_id", m.ID.String()).
		Str("hqmf_id", m.HQMFID).
		Int("criteria", len(m.Criteria())).
		Msg("measure imported")
	return m, true, nil
}

func (s *Service) GetMeasure(ctx context.Context, id uuid.UUID) (*Measure, error) {
	return s.repo.GetByID(ctx, id)
}

// ListMeasures returns summaries; documents are only served by GetMeasure.
func (s *Service) ListMeasures(ctx context.Context, limit, offset int) ([]*Measure, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i, m := range items {
		if m.Document != nil {
			items[i] = m.Summary()
		}
	}
	return items, total, nil
}

// ListCriteria returns the stored criteria of a measure in document order.
func (s *Service) ListCriteria(ctx context.Context, id uuid.UUID, filter CriteriaFilter) ([]*hqmf.DataCriterion, error) {
	if filter.Definition != "" && !hqmf.IsKnownDefinition(filter.Definition) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefinition, filter.Definition)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListCriteria(ctx, id, filter)
}

func (s *Service) DeleteMeasure(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
