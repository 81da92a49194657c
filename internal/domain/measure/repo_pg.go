package measure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/hqmf/internal/hqmf"
	"github.com/ehr/hqmf/internal/platform/db"
)

type measureRepoPG struct{ pool *pgxpool.Pool }

func NewMeasureRepoPG(pool *pgxpool.Pool) MeasureRepository {
	return &measureRepoPG{pool: pool}
}

func (r *measureRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const summaryCols = `id, hqmf_id, set_id, version, cms_id, title, description,
	period_low, period_high, content_sha256, created_at`

func scanSummary(row pgx.Row, m *Measure, extra ...any) error {
	dest := append([]any{&m.ID, &m.HQMFID, &m.SetID, &m.Version, &m.CMSID, &m.Title, &m.Description,
		&m.PeriodLow, &m.PeriodHigh, &m.ContentSHA256, &m.CreatedAt}, extra...)
	return row.Scan(dest...)
}

func (r *measureRepoPG) scanRow(row pgx.Row) (*Measure, error) {
	var (
		m      Measure
		result []byte
	)
	if err := scanSummary(row, &m, &result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(result) > 0 {
		m.Document = &hqmf.Measure{}
		if err := json.Unmarshal(result, m.Document); err != nil {
			return nil, fmt.Errorf("decode stored result for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *measureRepoPG) Create(ctx context.Context, m *Measure) error {
	result, err := json.Marshal(m.Document)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		m.ID = uuid.New()
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO measure (id, hqmf_id, set_id, version, cms_id, title, description,
				period_low, period_high, content_sha256, result)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at`,
			m.ID, m.HQMFID, m.SetID, m.Version, m.CMSID, m.Title, m.Description,
			m.PeriodLow, m.PeriodHigh, m.ContentSHA256, result).Scan(&m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert measure: %w", err)
		}

		criteria := m.Criteria()
		if len(criteria) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(criteria))
		for i, c := range criteria {
			payload, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode criterion %s: %w", c.ID, err)
			}
			rows = append(rows, []any{m.ID, i, c.ID, c.Definition.String(), c.Status, c.Variable, payload})
		}
		_, err = db.TxFromContext(ctx).CopyFrom(ctx,
			pgx.Identifier{"data_criterion"},
			[]string{"measure_id", "position", "criterion_id", "definition", "status", "variable", "payload"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy data criteria: %w", err)
		}
		return nil
	})
}

func (r *measureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Measure, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+summaryCols+`, result FROM measure WHERE id = $1`, id))
}

func (r *measureRepoPG) GetByDigest(ctx context.Context, digest string) (*Measure, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+summaryCols+`, result FROM measure WHERE content_sha256 = $1`, digest))
}

func (r *measureRepoPG) List(ctx context.Context, limit, offset int) ([]*Measure, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measure`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+summaryCols+` FROM measure ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Measure
	for rows.Next() {
		var m Measure
		if err := scanSummary(rows, &m); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (r *measureRepoPG) ListCriteria(ctx context.Context, id uuid.UUID, filter CriteriaFilter) ([]*hqmf.DataCriterion, error) {
	query := `SELECT payload FROM data_criterion WHERE measure_id = $1`
	args := []any{id}
	if filter.Definition != "" {
		args = append(args, filter.Definition)
		query += fmt.Sprintf(" AND definition = $%d", len(args))
	}
	if filter.Variable != nil {
		args = append(args, *filter.Variable)
		query += fmt.Sprintf(" AND variable = $%d", len(args))
	}
	query += " ORDER BY position"

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*hqmf.DataCriterion
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		c := &hqmf.DataCriterion{}
		if err := json.Unmarshal(payload, c); err != nil {
			return nil, fmt.Errorf("decode criterion: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *measureRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM measure WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
