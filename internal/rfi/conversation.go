package rfi

import (
	"strings"
	"time"

	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

const maxKeyAttempts = 5

// KeyFunc generates message keys. Keys only need to be unique within one RFI.
type KeyFunc func() string

// AppendMessage adds msg at the end of the conversation and flips the status
// to await the other party. Messages cannot be added once the RFI is resolved
// or closed.
func (r RFI) AppendMessage(msg Message, by rbac.Actor, newKey KeyFunc, now time.Time) (RFI, Message, error) {
	const op = "rfi.append_message"
	if !r.Status.Active() {
		return r, Message{}, shared.E(shared.KindInvalidTransition, op, "rfi in status %s accepts no messages", r.Status)
	}
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Body == "" && len(msg.Attachments) == 0 {
		return r, Message{}, shared.Validation(op, "message body or attachment required")
	}
	if err := validateSender(op, msg); err != nil {
		return r, Message{}, err
	}
	key, err := r.uniqueKey(op, msg.Key, newKey)
	if err != nil {
		return r, Message{}, err
	}

	next := r.Clone()
	stored := Message{
		Key:          key,
		Body:         msg.Body,
		ClientSender: cloneRef(msg.ClientSender),
		LabSender:    cloneRef(msg.LabSender),
		SentByClient: msg.SentByClient,
		Attachments:  cloneAttachments(msg.Attachments),
		Timestamp:    now,
	}
	if stored.Attachments == nil {
		stored.Attachments = []Attachment{}
	}
	next.Conversation = append(next.Conversation, stored)
	next.UpdatedAt = now

	target := statusAwaiting(stored.Side().Other(), r.InitiationType)
	if target != next.Status {
		next, err = next.Transition(target, by, "", key, now)
		if err != nil {
			return r, Message{}, err
		}
	}
	return next, stored, nil
}

func validateSender(op string, msg Message) error {
	hasClient := msg.ClientSender != nil && strings.TrimSpace(msg.ClientSender.ID) != ""
	hasLab := msg.LabSender != nil && strings.TrimSpace(msg.LabSender.ID) != ""
	if hasClient == hasLab {
		return shared.Validation(op, "exactly one of client sender or lab sender required")
	}
	if msg.SentByClient != hasClient {
		return shared.Validation(op, "sentByClient does not match the populated sender")
	}
	return nil
}

func (r RFI) uniqueKey(op, requested string, newKey KeyFunc) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if r.messageIndex(requested) >= 0 {
			return "", shared.Validation(op, "message key %q already used", requested)
		}
		return requested, nil
	}
	if newKey == nil {
		return "", shared.Validation(op, "message key required")
	}
	for i := 0; i < maxKeyAttempts; i++ {
		key := newKey()
		if key != "" && r.messageIndex(key) < 0 {
			return key, nil
		}
	}
	return "", shared.E(shared.KindConflict, op, "could not allocate a unique message key")
}

func (r RFI) messageIndex(key string) int {
	for i, m := range r.Conversation {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// MarkOfficial promotes the message to official response and demotes any
// other official message in the same step. changed is false when the message
// was already the only official one.
func (r RFI) MarkOfficial(key string, now time.Time) (next RFI, changed bool, err error) {
	idx := r.messageIndex(key)
	if idx < 0 {
		return r, false, shared.NotFound("rfi.mark_official", "message %q not found", key)
	}
	if !r.Status.Active() && r.Status != StatusResolved {
		return r, false, shared.E(shared.KindInvalidTransition, "rfi.mark_official", "rfi in status %s is archived", r.Status)
	}
	official := r.officialCount()
	if r.Conversation[idx].IsOfficialResponse && official == 1 {
		return r, false, nil
	}
	next = r.Clone()
	for i := range next.Conversation {
		next.Conversation[i].IsOfficialResponse = i == idx
	}
	next.UpdatedAt = now
	return next, true, nil
}

// UnmarkOfficial clears the official flag of the message. No other message is
// promoted in its place.
func (r RFI) UnmarkOfficial(key string, now time.Time) (RFI, error) {
	idx := r.messageIndex(key)
	if idx < 0 || !r.Conversation[idx].IsOfficialResponse {
		return r, shared.NotFound("rfi.unmark_official", "message %q is not the official response", key)
	}
	if !r.Status.Active() && r.Status != StatusResolved {
		return r, shared.E(shared.KindInvalidTransition, "rfi.unmark_official", "rfi in status %s is archived", r.Status)
	}
	next := r.Clone()
	next.Conversation[idx].IsOfficialResponse = false
	next.UpdatedAt = now
	return next, nil
}

func (r RFI) officialCount() int {
	n := 0
	for _, m := range r.Conversation {
		if m.IsOfficialResponse {
			n++
		}
	}
	return n
}
