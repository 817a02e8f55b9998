package rfi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/projects"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

const (
	entityRFI = "rfi"
	viewName  = "rfi"
)

// Notification events emitted to client contacts.
const (
	EventRFISubmitted = "rfi.submitted"
	EventRFIMessage   = "rfi.message"
	EventRFIResolved  = "rfi.resolved"
)

// ViewCache stores derived read models keyed by entity id.
type ViewCache interface {
	FetchJSON(ctx context.Context, view, entityID string, dest any, loader func(context.Context) (any, error)) error
}

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
	NewKey      KeyFunc
}

// Service applies RFI workflow steps and persists the result with a version
// check. Side effects run only after a successful save.
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
	newKey      KeyFunc
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
		newKey:      deps.NewKey,
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
	if s.newKey == nil {
		s.newKey = uuid.NewString
	}
	return s
}

// Submit opens a new RFI. Clients may only open client initiated RFIs.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor, in SubmitInput) (*RFI, error) {
	const op = "rfi.submit"
	if err := rbac.Require(actor, rbac.PermRFISubmit); err != nil {
		s.observe("submit", err)
		return nil, err
	}
	if actor.IsClient() && in.InitiationType != SideClient {
		err := shared.E(shared.KindForbidden, op, "clients can only submit client initiated rfis")
		s.observe("submit", err)
		return nil, err
	}
	if _, err := s.projects.Get(ctx, in.ProjectID); err != nil {
		s.observe("submit", err)
		return nil, shared.WithOp(op, err)
	}
	draft, err := New(s.newID(), in, actor, s.now())
	if err != nil {
		s.observe("submit", err)
		return nil, err
	}
	created, err := s.repo.Create(ctx, draft)
	if err != nil {
		s.observe("submit", err)
		return nil, shared.WithOp(op, err)
	}
	s.observe("submit", nil)
	s.afterCommit(ctx, actor, "submit", created, "")
	if created.InitiationType == SideLab {
		s.notify(ctx, EventRFISubmitted, created, nil)
	}
	return created, nil
}

// Get returns the RFI with its conversation and history.
func (s *Service) Get(ctx context.Context, id string) (*RFI, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, shared.WithOp("rfi.get", err)
	}
	return r, nil
}

// View returns the RFI through the view cache when one is configured.
func (s *Service) View(ctx context.Context, id string) (*RFI, error) {
	if s.cache == nil {
		return s.Get(ctx, id)
	}
	var out RFI
	err := s.cache.FetchJSON(ctx, viewName, id, &out, func(ctx context.Context) (any, error) {
		return s.Get(ctx, id)
	})
	if err != nil {
		return nil, shared.WithOp("rfi.view", err)
	}
	return &out, nil
}

// AppendMessage adds a message to the conversation. The sender must be the
// acting party, and clients must be participants of the RFI.
func (s *Service) AppendMessage(ctx context.Context, actor rbac.Actor, id string, msg Message) (*RFI, *Message, error) {
	const op = "rfi.message"
	if err := rbac.Require(actor, rbac.PermRFIMessage); err != nil {
		s.observe("message", err)
		return nil, nil, err
	}
	if actor.IsClient() != msg.SentByClient {
		err := shared.E(shared.KindForbidden, op, "sender side does not match the acting party")
		s.observe("message", err)
		return nil, nil, err
	}
	if sender := msg.Sender(); sender != nil && sender.ID != actor.ID {
		err := shared.E(shared.KindForbidden, op, "sender %s does not match actor %s", sender.ID, actor.ID)
		s.observe("message", err)
		return nil, nil, err
	}
	var appended Message
	saved, err := s.apply(ctx, actor, "message", id, func(r RFI, now time.Time) (RFI, bool, error) {
		if actor.IsClient() && !r.HasClientParticipant(actor.ID) {
			return r, false, shared.E(shared.KindForbidden, op, "actor %s is not a client participant", actor.ID)
		}
		next, m, err := r.AppendMessage(msg, actor, s.newKey, now)
		appended = m
		return next, true, err
	})
	if err != nil {
		return nil, nil, err
	}
	if !appended.SentByClient {
		s.notify(ctx, EventRFIMessage, saved, &appended)
	}
	return saved, &appended, nil
}

// MarkOfficialOptions controls MarkOfficial.
type MarkOfficialOptions struct {
	// Resolve also moves the RFI to resolved, recording the message key.
	Resolve bool
	Reason  string
}

// MarkOfficial promotes a message to official response. Re-marking the current
// official message is a no-op that skips the write.
func (s *Service) MarkOfficial(ctx context.Context, actor rbac.Actor, id, key string, opts MarkOfficialOptions) (*RFI, error) {
	if err := rbac.Require(actor, rbac.PermRFIOfficial); err != nil {
		s.observe("mark_official", err)
		return nil, err
	}
	resolved := false
	saved, err := s.apply(ctx, actor, "mark_official", id, func(r RFI, now time.Time) (RFI, bool, error) {
		next, changed, err := r.MarkOfficial(key, now)
		if err != nil {
			return r, false, err
		}
		if opts.Resolve && next.Status != StatusResolved {
			next, err = next.Transition(StatusResolved, actor, opts.Reason, key, now)
			resolved = err == nil
			return next, true, err
		}
		return next, changed, nil
	})
	if err != nil {
		return nil, err
	}
	if resolved {
		s.notify(ctx, EventRFIResolved, saved, nil)
	}
	return saved, nil
}

// UnmarkOfficial clears the official flag of the message.
func (s *Service) UnmarkOfficial(ctx context.Context, actor rbac.Actor, id, key string) (*RFI, error) {
	if err := rbac.Require(actor, rbac.PermRFIOfficial); err != nil {
		s.observe("unmark_official", err)
		return nil, err
	}
	return s.apply(ctx, actor, "unmark_official", id, func(r RFI, now time.Time) (RFI, bool, error) {
		next, err := r.UnmarkOfficial(key, now)
		return next, true, err
	})
}

// Transition applies an explicit status change such as resolve, reopen or
// close. Clients may only resolve RFIs they initiated.
func (s *Service) Transition(ctx context.Context, actor rbac.Actor, id string, to Status, reason string) (*RFI, error) {
	const op = "rfi.transition"
	if !rbac.Can(actor.Role, rbac.PermRFITransition) && !(actor.IsClient() && to == StatusResolved) {
		err := rbac.Require(actor, rbac.PermRFITransition)
		s.observe("transition", err)
		return nil, err
	}
	saved, err := s.apply(ctx, actor, "transition", id, func(r RFI, now time.Time) (RFI, bool, error) {
		if actor.IsClient() && !r.InitiatedBy(actor) {
			return r, false, shared.E(shared.KindForbidden, op, "clients may only resolve rfis they initiated")
		}
		next, err := r.Transition(to, actor, reason, "", now)
		return next, true, err
	})
	if err != nil {
		return nil, err
	}
	if to == StatusResolved {
		s.notify(ctx, EventRFIResolved, saved, nil)
	}
	return saved, nil
}

// apply loads the RFI, runs step on a copy and saves the result when step
// reports a change. Views are invalidated once per successful save.
func (s *Service) apply(ctx context.Context, actor rbac.Actor, action, id string, step func(RFI, time.Time) (RFI, bool, error)) (*RFI, error) {
	op := "rfi." + action
	if actor.ID == "" {
		err := shared.E(shared.KindForbidden, op, "actor identity required")
		s.observe(action, err)
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		s.observe(action, err)
		return nil, shared.WithOp(op, err)
	}
	next, changed, err := step(current.Clone(), s.now())
	if err != nil {
		s.observe(action, err)
		return nil, shared.WithOp(op, err)
	}
	if !changed {
		s.observe(action, nil)
		return current, nil
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

func (s *Service) afterCommit(ctx context.Context, actor rbac.Actor, action string, r *RFI, from Status) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, r.ID); err != nil {
			s.logger.Warn("rfi invalidate views", slog.String("rfi_id", r.ID), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"from":       string(from),
		"to":         string(r.Status),
		"actor_role": string(actor.Role),
		"messages":   len(r.Conversation),
	}
	if official, ok := r.OfficialResponse(); ok {
		meta["official_message"] = official.Key
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "rfi." + action,
		Entity:   entityRFI,
		EntityID: r.ID,
		Meta:     meta,
		At:       r.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("rfi audit", slog.String("rfi_id", r.ID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, event string, r *RFI, msg *Message) {
	if s.notifier == nil {
		return
	}
	refs := r.Participants.ClientRefs()
	recipients := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref.Email == "" {
			continue
		}
		if _, dup := seen[ref.Email]; dup {
			continue
		}
		seen[ref.Email] = struct{}{}
		recipients = append(recipients, ref.Email)
	}
	data := map[string]string{
		"subject": r.Subject,
		"status":  string(r.Status),
	}
	if msg != nil {
		data["message_key"] = msg.Key
		data["body"] = msg.Body
	}
	err := s.notifier.NotifyClient(ctx, shared.Notification{
		Event:      event,
		EntityType: entityRFI,
		EntityID:   r.ID,
		ProjectID:  r.ProjectID,
		Recipients: recipients,
		Data:       data,
		OccurredAt: r.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("rfi notify client", slog.String("rfi_id", r.ID), slog.String("event", event), slog.Any("error", err))
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
	s.metrics.ObserveTransition(entityRFI, action, outcome)
}
