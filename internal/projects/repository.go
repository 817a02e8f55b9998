package projects

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// Repository reads projects. Project CRUD lives outside this service.
type Repository interface {
	Get(ctx context.Context, id string) (*Project, error)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db querier
}

// NewRepository constructs a pgx backed repository.
func NewRepository(pool querier) Repository {
	return &repository{db: pool}
}

const getProjectSQL = `
	SELECT id, name, internal_id, start_date, end_date, clients, contacts, quotation_id, stages_completed
	FROM projects
	WHERE id = $1`

func (r *repository) Get(ctx context.Context, id string) (*Project, error) {
	var (
		p                 Project
		start, end        *time.Time
		clients, contacts []byte
		stages            []int32
	)
	err := r.db.QueryRow(ctx, getProjectSQL, id).Scan(
		&p.ID, &p.Name, &p.InternalID, &start, &end, &clients, &contacts, &p.QuotationID, &stages,
	)
	if err != nil {
		return nil, db.Classify("projects.get", err)
	}
	p.StartDate, p.EndDate = start, end
	if err := unmarshalJSON(clients, &p.Clients); err != nil {
		return nil, db.Classify("projects.get", err)
	}
	if err := unmarshalJSON(contacts, &p.Contacts); err != nil {
		return nil, db.Classify("projects.get", err)
	}
	p.StagesCompleted = make([]int, len(stages))
	for i, s := range stages {
		p.StagesCompleted[i] = int(s)
	}
	return &p, nil
}

func unmarshalJSON(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
