package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// Query is a filtered window over audit_logs. A nil Limit returns every row.
type Query struct {
	TimelineFilters
	Offset int
	Limit  *int
}

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, q Query) ([]TimelineRow, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type repository struct {
	db querier
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool querier) Repository {
	return &repository{db: pool}
}

const windowSQL = `
	SELECT occurred_at, actor_id, action, entity, entity_id, meta
	FROM audit_logs
	WHERE ($1::text = '' OR entity = $1)
	  AND ($2::text = '' OR entity_id = $2)
	  AND ($3::text = '' OR actor_id = $3)
	  AND ($4::text = '' OR action = $4)
	  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
	  AND ($6::timestamptz IS NULL OR occurred_at < $6)
	ORDER BY occurred_at DESC, id DESC
	OFFSET $7
	LIMIT $8`

func (r *repository) Window(ctx context.Context, q Query) ([]TimelineRow, error) {
	rows, err := r.db.Query(ctx, windowSQL,
		q.Entity, q.EntityID, q.Actor, q.Action,
		optionalTime(q.From), optionalTime(q.To),
		q.Offset, q.Limit,
	)
	if err != nil {
		return nil, db.Classify("audit.window", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, db.Classify("audit.window", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, db.Classify("audit.window", err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("audit.window", err)
	}
	return out, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
