package rfi

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// Repository persists RFIs. The conversation and status history are stored on
// the RFI row so promotion and demotion of official messages land in a single
// versioned update.
type Repository interface {
	Get(ctx context.Context, id string) (*RFI, error)
	Create(ctx context.Context, r RFI) (*RFI, error)
	// Save writes r if the stored version still equals expectedVersion.
	Save(ctx context.Context, r RFI, expectedVersion int64) (*RFI, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

func NewRepository(pool dbtx) Repository {
	return &repository{db: pool}
}

const selectRFISQL = `
	SELECT id, project_id, COALESCE(client_id, ''), initiation_type, status, subject, description,
	       participants, attachments, conversation, status_history, date_submitted, date_resolved,
	       submitted_by, updated_at, version
	FROM rfis
	WHERE id = $1`

func (r *repository) Get(ctx context.Context, id string) (*RFI, error) {
	var (
		out                       RFI
		participants, attachments []byte
		conversation, history     []byte
	)
	err := r.db.QueryRow(ctx, selectRFISQL, id).Scan(
		&out.ID, &out.ProjectID, &out.ClientID, &out.InitiationType, &out.Status, &out.Subject, &out.Description,
		&participants, &attachments, &conversation, &history, &out.DateSubmitted, &out.DateResolved,
		&out.SubmittedBy, &out.UpdatedAt, &out.Version,
	)
	if err != nil {
		return nil, db.Classify("rfis.get", err)
	}
	docs := []struct {
		raw  []byte
		dest any
	}{
		{participants, &out.Participants},
		{attachments, &out.Attachments},
		{conversation, &out.Conversation},
		{history, &out.StatusHistory},
	}
	for _, d := range docs {
		if len(d.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(d.raw, d.dest); err != nil {
			return nil, db.Classify("rfis.get", err)
		}
	}
	return &out, nil
}

type documents struct {
	participants, attachments, conversation, history []byte
}

func marshalDocuments(r RFI) (documents, error) {
	var (
		out documents
		err error
	)
	if out.participants, err = json.Marshal(r.Participants); err != nil {
		return out, err
	}
	if out.attachments, err = json.Marshal(nonNil(r.Attachments)); err != nil {
		return out, err
	}
	if out.conversation, err = json.Marshal(nonNil(r.Conversation)); err != nil {
		return out, err
	}
	out.history, err = json.Marshal(nonNil(r.StatusHistory))
	return out, err
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

const insertRFISQL = `
	INSERT INTO rfis (
		id, project_id, client_id, initiation_type, status, subject, description,
		participants, attachments, conversation, status_history, date_submitted, date_resolved,
		submitted_by, updated_at, version
	) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)`

func (r *repository) Create(ctx context.Context, in RFI) (*RFI, error) {
	docs, err := marshalDocuments(in)
	if err != nil {
		return nil, db.Classify("rfis.create", err)
	}
	_, err = r.db.Exec(ctx, insertRFISQL,
		in.ID, in.ProjectID, in.ClientID, in.InitiationType, in.Status, in.Subject, in.Description,
		docs.participants, docs.attachments, docs.conversation, docs.history, in.DateSubmitted, in.DateResolved,
		in.SubmittedBy, in.UpdatedAt,
	)
	if err != nil {
		return nil, db.Classify("rfis.create", err)
	}
	in.Version = 1
	return &in, nil
}

// date_submitted is never rewritten after creation.
const updateRFISQL = `
	UPDATE rfis
	SET status = $3, subject = $4, description = $5, participants = $6, attachments = $7,
	    conversation = $8, status_history = $9, date_resolved = $10, updated_at = $11,
	    version = version + 1
	WHERE id = $1 AND version = $2
	RETURNING version`

func (r *repository) Save(ctx context.Context, in RFI, expectedVersion int64) (*RFI, error) {
	docs, err := marshalDocuments(in)
	if err != nil {
		return nil, db.Classify("rfis.save", err)
	}
	var version int64
	err = r.db.QueryRow(ctx, updateRFISQL,
		in.ID, expectedVersion, in.Status, in.Subject, in.Description, docs.participants, docs.attachments,
		docs.conversation, docs.history, in.DateResolved, in.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		err = db.ErrStaleVersion
	}
	if err != nil {
		return nil, db.Classify("rfis.save", err)
	}
	in.Version = version
	return &in, nil
}
