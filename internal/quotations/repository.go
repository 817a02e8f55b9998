package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// Repository persists quotations and their revision chain.
type Repository interface {
	Get(ctx context.Context, id string) (*Quotation, error)
	// Create inserts a draft and attaches it to its project in one transaction.
	Create(ctx context.Context, q Quotation) (*Quotation, error)
	// Save writes q if the stored version still equals expectedVersion.
	// Revision snapshots are append-only: existing rows are never rewritten.
	Save(ctx context.Context, q Quotation, expectedVersion int64) (*Quotation, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type pool interface {
	dbtx
	db.Beginner
}

type repository struct {
	db   dbtx
	pool pool
}

func NewRepository(p pool) Repository {
	return &repository{db: p, pool: p}
}

func (r *repository) withTx(ctx context.Context, fn func(*repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&repository{db: tx, pool: r.pool})
	})
}

const selectQuotationSQL = `
	SELECT id, project_id, status, currency, revision_number, items, other_items, vat_percentage,
	       COALESCE(rejection_notes, ''), sent_at, decided_at, invoiced_at, paid_at,
	       created_by, created_at, updated_at, version
	FROM quotations
	WHERE id = $1`

func (r *repository) Get(ctx context.Context, id string) (*Quotation, error) {
	var (
		q                 Quotation
		items, otherItems []byte
	)
	err := r.db.QueryRow(ctx, selectQuotationSQL, id).Scan(
		&q.ID, &q.ProjectID, &q.Status, &q.Currency, &q.RevisionNumber, &items, &otherItems, &q.VATPercentage,
		&q.RejectionNotes, &q.SentAt, &q.DecidedAt, &q.InvoicedAt, &q.PaidAt,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt, &q.Version,
	)
	if err != nil {
		return nil, db.Classify("quotations.get", err)
	}
	if err := json.Unmarshal(items, &q.Items); err != nil {
		return nil, db.Classify("quotations.get", err)
	}
	if err := json.Unmarshal(otherItems, &q.OtherItems); err != nil {
		return nil, db.Classify("quotations.get", err)
	}
	revisions, err := r.listRevisions(ctx, id)
	if err != nil {
		return nil, db.Classify("quotations.get", err)
	}
	q.Revisions = revisions
	return &q, nil
}

func (r *repository) listRevisions(ctx context.Context, quotationID string) ([]Revision, error) {
	rows, err := r.db.Query(ctx, `SELECT snapshot FROM quotation_revisions WHERE quotation_id = $1 ORDER BY revision_number DESC`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	revisions := []Revision{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rev Revision
		if err := json.Unmarshal(raw, &rev); err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

const insertQuotationSQL = `
	INSERT INTO quotations (
		id, project_id, status, currency, revision_number, items, other_items, vat_percentage,
		created_by, created_at, updated_at, version
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, 1)`

func (r *repository) Create(ctx context.Context, q Quotation) (*Quotation, error) {
	items, otherItems, err := marshalItems(q)
	if err != nil {
		return nil, db.Classify("quotations.create", err)
	}
	err = r.withTx(ctx, func(tx *repository) error {
		if _, err := tx.db.Exec(ctx, insertQuotationSQL,
			q.ID, q.ProjectID, q.Status, q.Currency, q.RevisionNumber, items, otherItems, q.VATPercentage,
			q.CreatedBy, q.CreatedAt,
		); err != nil {
			return err
		}
		tag, err := tx.db.Exec(ctx, `UPDATE projects SET quotation_id = $1 WHERE id = $2 AND quotation_id IS NULL`, q.ID, q.ProjectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return db.ErrStaleVersion
		}
		return nil
	})
	if err != nil {
		return nil, db.Classify("quotations.create", err)
	}
	q.Version = 1
	q.UpdatedAt = q.CreatedAt
	return &q, nil
}

const updateQuotationSQL = `
	UPDATE quotations
	SET status = $3, currency = $4, revision_number = $5, items = $6, other_items = $7,
	    vat_percentage = $8, rejection_notes = NULLIF($9, ''), sent_at = $10, decided_at = $11,
	    invoiced_at = $12, paid_at = $13, updated_at = $14, version = version + 1
	WHERE id = $1 AND version = $2
	RETURNING version`

func (r *repository) Save(ctx context.Context, q Quotation, expectedVersion int64) (*Quotation, error) {
	items, otherItems, err := marshalItems(q)
	if err != nil {
		return nil, db.Classify("quotations.save", err)
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now().UTC()
	}
	var newVersion int64
	err = r.withTx(ctx, func(tx *repository) error {
		err := tx.db.QueryRow(ctx, updateQuotationSQL,
			q.ID, expectedVersion, q.Status, q.Currency, q.RevisionNumber, items, otherItems,
			q.VATPercentage, q.RejectionNotes, q.SentAt, q.DecidedAt, q.InvoicedAt, q.PaidAt, q.UpdatedAt,
		).Scan(&newVersion)
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ErrStaleVersion
		}
		if err != nil {
			return err
		}
		for _, rev := range q.Revisions {
			raw, err := json.Marshal(rev)
			if err != nil {
				return err
			}
			if _, err := tx.db.Exec(ctx,
				`INSERT INTO quotation_revisions (quotation_id, revision_number, snapshot, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (quotation_id, revision_number) DO NOTHING`,
				q.ID, rev.RevisionNumber, raw, rev.CreatedAt,
			); err != nil {
				return err
			}
		}
		_, err = tx.db.Exec(ctx, `UPDATE projects SET stages_completed = $2 WHERE id = $1`, q.ProjectID, StagesCompleted(&q))
		return err
	})
	if err != nil {
		return nil, db.Classify("quotations.save", err)
	}
	q.Version = newVersion
	return &q, nil
}

func marshalItems(q Quotation) ([]byte, []byte, error) {
	items, err := json.Marshal(nonNil(q.Items))
	if err != nil {
		return nil, nil, err
	}
	other, err := json.Marshal(nonNil(q.OtherItems))
	if err != nil {
		return nil, nil, err
	}
	return items, other, nil
}

func nonNil(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
