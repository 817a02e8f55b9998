package quotations

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/billing"
	"github.com/labdesk/labdesk/internal/projects"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

const (
	entityQuotation = "quotation"
	viewName        = "quotation"
)

// ViewCache stores derived read models keyed by entity id.
type ViewCache interface {
	FetchJSON(ctx context.Context, view, entityID string, dest any, loader func(context.Context) (any, error)) error
}

// Notification events emitted to the client side.
const (
	EventQuotationSent     = "quotation.sent"
	EventQuotationInvoiced = "quotation.invoiced"
)

// ServiceDeps collects the collaborators of Service. Only Repo and Projects
// are required.
type ServiceDeps struct {
	Repo        Repository
	Projects    projects.Repository
	Notifier    shared.Notifier
	Invalidator shared.Invalidator
	Cache       ViewCache
	Audit       shared.AuditRecorder
	Metrics     shared.TransitionObserver
	Logger      *slog.Logger
	Clock       shared.Clock
	NewID       func() string
}

// Service orchestrates quotation transitions: load, apply the pure lifecycle
// step, persist with a version check, then invalidate views and notify.
type Service struct {
	repo        Repository
	projects    projects.Repository
	notifier    shared.Notifier
	invalidator shared.Invalidator
	cache       ViewCache
	audit       shared.AuditRecorder
	metrics     shared.TransitionObserver
	logger      *slog.Logger
	now         shared.Clock
	newID       func() string
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		repo:        deps.Repo,
		projects:    deps.Projects,
		notifier:    deps.Notifier,
		invalidator: deps.Invalidator,
		cache:       deps.Cache,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
		newID:       deps.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// StartBillingInput seeds the first draft of a project's quotation.
type StartBillingInput struct {
	Currency      string
	VATPercentage float64
	Items         []Item
	OtherItems    []Item
}

// StartBilling lazily creates the project's quotation in draft.
func (s *Service) StartBilling(ctx context.Context, actor rbac.Actor, projectID string, in StartBillingInput) (*Quotation, error) {
	const op = "quotation.start_billing"
	if err := rbac.Require(actor, rbac.PermQuotationEdit); err != nil {
		return nil, err
	}
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, shared.WithOp(op, err)
	}
	if project.QuotationID != nil {
		return nil, shared.Validation(op, "project %s already has quotation %s", project.ID, *project.QuotationID)
	}
	now := s.now()
	draft := Quotation{
		ID:        s.newID(),
		ProjectID: project.ID,
		Status:    QuotationStatusDraft,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
		Revisions: []Revision{},
	}
	currency, vat, items, other := in.Currency, in.VATPercentage, in.Items, in.OtherItems
	draft, err = draft.EditDraft(DraftChanges{Currency: &currency, VATPercentage: &vat, Items: &items, OtherItems: &other}, now)
	if err != nil {
		return nil, shared.WithOp(op, err)
	}
	created, err := s.repo.Create(ctx, draft)
	if err != nil {
		s.observe("start_billing", err)
		return nil, shared.WithOp(op, err)
	}
	s.observe("start_billing", nil)
	s.afterCommit(ctx, actor, "start_billing", created, "")
	return created, nil
}

// Get returns the quotation with its revision chain.
func (s *Service) Get(ctx context.Context, id string) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, shared.WithOp("quotation.get", err)
	}
	return q, nil
}

// UpdateDraft edits items, VAT or currency of a draft.
func (s *Service) UpdateDraft(ctx context.Context, actor rbac.Actor, id string, changes DraftChanges) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationEdit, "edit", id, func(q Quotation, now time.Time) (Quotation, error) {
		return q.EditDraft(changes, now)
	})
}

// Send delivers a draft to the client.
func (s *Service) Send(ctx context.Context, actor rbac.Actor, id string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationSend, "send", id, func(q Quotation, now time.Time) (Quotation, error) {
		return q.Send(now)
	})
}

// Accept records acceptance of a sent quotation.
func (s *Service) Accept(ctx context.Context, actor rbac.Actor, id string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationDecide, "accept", id, func(q Quotation, now time.Time) (Quotation, error) {
		if err := s.requireContact(ctx, actor, q); err != nil {
			return q, err
		}
		return q.Accept(now)
	})
}

// Reject records rejection of a sent quotation; notes are mandatory.
func (s *Service) Reject(ctx context.Context, actor rbac.Actor, id, notes string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationDecide, "reject", id, func(q Quotation, now time.Time) (Quotation, error) {
		if err := s.requireContact(ctx, actor, q); err != nil {
			return q, err
		}
		return q.Reject(notes, now)
	})
}

// requireContact limits client decisions to contacts of the quotation's
// project. Lab roles pass.
func (s *Service) requireContact(ctx context.Context, actor rbac.Actor, q Quotation) error {
	if !actor.IsClient() {
		return nil
	}
	project, err := s.projects.Get(ctx, q.ProjectID)
	if err != nil {
		return err
	}
	if !project.HasContact(actor.ID) {
		return shared.E(shared.KindForbidden, "quotation.decide", "actor %s is not a contact of project %s", actor.ID, project.ID)
	}
	return nil
}

// Invoice finalises billing of an accepted quotation.
func (s *Service) Invoice(ctx context.Context, actor rbac.Actor, id string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationInvoice, "invoice", id, func(q Quotation, now time.Time) (Quotation, error) {
		return q.Invoice(now)
	})
}

// MarkPaid closes the lifecycle of an invoiced quotation.
func (s *Service) MarkPaid(ctx context.Context, actor rbac.Actor, id string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationInvoice, "pay", id, func(q Quotation, now time.Time) (Quotation, error) {
		return q.MarkPaid(now)
	})
}

// CreateRevision archives the current state and reopens the quotation as a draft.
func (s *Service) CreateRevision(ctx context.Context, actor rbac.Actor, id string) (*Quotation, error) {
	return s.apply(ctx, actor, rbac.PermQuotationRevise, "revise", id, func(q Quotation, now time.Time) (Quotation, error) {
		return q.Revise(actor.ID, now)
	})
}

func (s *Service) apply(ctx context.Context, actor rbac.Actor, perm rbac.Permission, action, id string, step func(Quotation, time.Time) (Quotation, error)) (*Quotation, error) {
	op := "quotation." + action
	if err := rbac.Require(actor, perm); err != nil {
		s.observe(action, err)
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		s.observe(action, err)
		return nil, shared.WithOp(op, err)
	}
	next, err := step(current.Clone(), s.now())
	if err != nil {
		s.observe(action, err)
		return nil, shared.WithOp(op, err)
	}
	saved, err := s.repo.Save(ctx, next, current.Version)
	if err != nil {
		s.observe(action, err)
		return nil, shared.WithOp(op, err)
	}
	s.observe(action, nil)
	s.afterCommit(ctx, actor, action, saved, current.Status)
	return saved, nil
}

// afterCommit runs the side effects of a committed transition. None of them
// can fail the transition.
func (s *Service) afterCommit(ctx context.Context, actor rbac.Actor, action string, q *Quotation, from QuotationStatus) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, q.ID); err != nil {
			s.logger.Warn("quotation invalidate views", slog.String("quotation_id", q.ID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "quotation." + action,
			Entity:   entityQuotation,
			EntityID: q.ID,
			Meta: map[string]any{
				"from":            string(from),
				"to":              string(q.Status),
				"revision_number": q.RevisionNumber,
				"actor_role":      string(actor.Role),
			},
			At: q.UpdatedAt,
		})
		if err != nil {
			s.logger.Warn("quotation audit", slog.String("quotation_id", q.ID), slog.Any("error", err))
		}
	}
	switch action {
	case "send":
		s.notify(ctx, EventQuotationSent, q)
	case "invoice":
		s.notify(ctx, EventQuotationInvoiced, q)
	}
}

func (s *Service) notify(ctx context.Context, event string, q *Quotation) {
	if s.notifier == nil {
		return
	}
	var recipients []string
	if project, err := s.projects.Get(ctx, q.ProjectID); err == nil {
		recipients = project.ContactEmails()
	} else {
		s.logger.Warn("quotation notify recipients", slog.String("project_id", q.ProjectID), slog.Any("error", err))
	}
	totals := q.Totals()
	err := s.notifier.NotifyClient(ctx, shared.Notification{
		Event:      event,
		EntityType: entityQuotation,
		EntityID:   q.ID,
		ProjectID:  q.ProjectID,
		Recipients: recipients,
		Data: map[string]string{
			"currency":       q.Currency,
			"revision":       itoa(q.RevisionNumber),
			"total_with_vat": formatAmount(totals.TotalWithVAT),
		},
		OccurredAt: q.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("quotation notify client", slog.String("quotation_id", q.ID), slog.String("event", event), slog.Any("error", err))
	}
}

func (s *Service) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(shared.KindOf(err))
	}
	s.metrics.ObserveTransition(entityQuotation, action, outcome)
}

// View is the read model rendered by the API and the PDF export.
type View struct {
	Quotation   *Quotation           `json:"quotation"`
	GroupTotals []billing.GroupTotal `json:"groupTotals"`
	Totals      billing.Totals       `json:"totals"`
	Stage       int                  `json:"stage"`
}

// NewView derives totals for the current revision.
func NewView(q *Quotation) *View {
	return &View{
		Quotation:   q,
		GroupTotals: billing.GroupTotals(q.Groups()),
		Totals:      q.Totals(),
		Stage:       StageIndex(q),
	}
}

// View loads the quotation and derives its read model, served from the view
// cache when one is configured.
func (s *Service) View(ctx context.Context, id string) (*View, error) {
	load := func(ctx context.Context) (any, error) {
		q, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return NewView(q), nil
	}
	if s.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.(*View), nil
	}
	var view View
	if err := s.cache.FetchJSON(ctx, viewName, id, &view, load); err != nil {
		return nil, shared.WithOp("quotation.view", err)
	}
	return &view, nil
}

// ProjectBilling is the billing summary of a project.
type ProjectBilling struct {
	Project *projects.Project `json:"project"`
	Stage   int               `json:"stage"`
	View    *View             `json:"quotation,omitempty"`
}

// ProjectBilling resolves the project's quotation reference.
func (s *Service) ProjectBilling(ctx context.Context, projectID string) (*ProjectBilling, error) {
	const op = "quotation.project_billing"
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, shared.WithOp(op, err)
	}
	out := &ProjectBilling{Project: project, Stage: StageIndex(nil)}
	if project.QuotationID == nil {
		return out, nil
	}
	q, err := s.repo.Get(ctx, *project.QuotationID)
	if err != nil {
		return nil, shared.WithOp(op, err)
	}
	out.View = NewView(q)
	out.Stage = out.View.Stage
	return out, nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func formatAmount(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
