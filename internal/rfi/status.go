package rfi

import (
	"strings"
	"time"

	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

var transitions = map[Status][]Status{
	StatusOpen:            {StatusPendingResponse, StatusResolved, StatusClosed},
	StatusPendingResponse: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:        {StatusOpen, StatusClosed},
}

// CanTransition reports whether from → to is permitted. Closed is terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AwaitingSide returns the party expected to respond in status s: open waits
// on the receiver, pending_response waits on the initiator.
func AwaitingSide(s Status, initiator Side) Side {
	if s == StatusPendingResponse {
		return initiator
	}
	return initiator.Other()
}

// statusAwaiting is the inverse of AwaitingSide for active statuses.
func statusAwaiting(side, initiator Side) Status {
	if side == initiator {
		return StatusPendingResponse
	}
	return StatusOpen
}

// SubmitInput describes a new RFI.
type SubmitInput struct {
	ProjectID      string
	ClientID       string
	InitiationType Side
	Subject        string
	Description    string
	Participants   Participants
	Attachments    []Attachment
}

// New validates the submission and returns an open RFI with its creation
// history entry.
func New(id string, in SubmitInput, by rbac.Actor, now time.Time) (RFI, error) {
	const op = "rfi.submit"
	if strings.TrimSpace(in.ProjectID) == "" {
		return RFI{}, shared.Validation(op, "project id required")
	}
	if !in.InitiationType.Valid() {
		return RFI{}, shared.Validation(op, "initiation type must be lab or client")
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return RFI{}, shared.Validation(op, "subject required")
	}
	p := in.Participants
	switch in.InitiationType {
	case SideLab:
		if len(p.InitiatorLab) == 0 || len(p.ReceiverClient) == 0 {
			return RFI{}, shared.Validation(op, "lab initiated rfi needs lab initiators and client receivers")
		}
	case SideClient:
		if len(p.InitiatorClient) == 0 || len(p.ReceiverLab) == 0 {
			return RFI{}, shared.Validation(op, "client initiated rfi needs client initiators and lab receivers")
		}
	}
	for _, refs := range [][]Ref{p.InitiatorLab, p.InitiatorClient, p.ReceiverLab, p.ReceiverClient} {
		for _, ref := range refs {
			if strings.TrimSpace(ref.ID) == "" {
				return RFI{}, shared.Validation(op, "participant id required")
			}
		}
	}
	r := RFI{
		ID:             id,
		ProjectID:      in.ProjectID,
		ClientID:       in.ClientID,
		InitiationType: in.InitiationType,
		Status:         StatusOpen,
		Subject:        subject,
		Participants:   p.clone(),
		Description:    strings.TrimSpace(in.Description),
		Attachments:    cloneAttachments(in.Attachments),
		Conversation:   []Message{},
		DateSubmitted:  now,
		SubmittedBy:    by.ID,
		UpdatedAt:      now,
	}
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	r.StatusHistory = []HistoryEntry{{
		Status:    StatusOpen,
		Timestamp: now,
		ChangedBy: by,
	}}
	return r, nil
}

// Transition moves the RFI to status to and appends one history entry.
// Entering resolved stamps DateResolved; reopening clears it.
func (r RFI) Transition(to Status, by rbac.Actor, reason, messageKey string, now time.Time) (RFI, error) {
	if !to.Valid() {
		return r, shared.Validation("rfi.transition", "unknown status %q", to)
	}
	if !CanTransition(r.Status, to) {
		return r, shared.E(shared.KindInvalidTransition, "rfi.transition", "rfi cannot move from %s to %s", r.Status, to)
	}
	next := r.Clone()
	next.StatusHistory = append(next.StatusHistory, HistoryEntry{
		PreviousStatus: r.Status,
		Status:         to,
		Timestamp:      now,
		ChangedBy:      by,
		Reason:         strings.TrimSpace(reason),
		MessageKey:     messageKey,
	})
	next.Status = to
	switch {
	case to == StatusResolved:
		next.DateResolved = &now
	case to.Active():
		next.DateResolved = nil
	}
	next.UpdatedAt = now
	return next, nil
}

// InitiatedBy reports whether the actor is among the client initiators.
func (r RFI) InitiatedBy(actor rbac.Actor) bool {
	if r.InitiationType != SideClient {
		return false
	}
	if r.SubmittedBy == actor.ID {
		return true
	}
	for _, ref := range r.Participants.InitiatorClient {
		if ref.ID == actor.ID {
			return true
		}
	}
	return false
}

// HasClientParticipant reports whether id is a client contact on the RFI.
func (r RFI) HasClientParticipant(id string) bool {
	if r.InitiationType == SideClient && r.SubmittedBy == id {
		return true
	}
	for _, ref := range r.Participants.ClientRefs() {
		if ref.ID == id {
			return true
		}
	}
	return false
}
