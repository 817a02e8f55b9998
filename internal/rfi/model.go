package rfi

import (
	"time"

	"github.com/labdesk/labdesk/internal/rbac"
)

type Status string

const (
	StatusOpen            Status = "open"
	StatusPendingResponse Status = "pending_response"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPendingResponse, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Active reports whether the conversation may continue in s.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusPendingResponse
}

// Side is one party of an RFI. InitiationType is the side that opened it.
type Side string

const (
	SideLab    Side = "lab"
	SideClient Side = "client"
)

func (s Side) Valid() bool { return s == SideLab || s == SideClient }

// Other returns the opposite party.
func (s Side) Other() Side {
	if s == SideLab {
		return SideClient
	}
	return SideLab
}

// Ref points at lab personnel or a client contact.
type Ref struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Participants lists who raised the RFI and who must answer it. Each side can
// carry lab personnel and client contacts.
type Participants struct {
	InitiatorLab    []Ref `json:"initiatorLab"`
	InitiatorClient []Ref `json:"initiatorClient"`
	ReceiverLab     []Ref `json:"receiverLab"`
	ReceiverClient  []Ref `json:"receiverClient"`
}

// ClientRefs returns every client contact on the RFI, initiators first.
func (p Participants) ClientRefs() []Ref {
	out := make([]Ref, 0, len(p.InitiatorClient)+len(p.ReceiverClient))
	out = append(out, p.InitiatorClient...)
	return append(out, p.ReceiverClient...)
}

type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// Message is one conversation entry. Only IsOfficialResponse may change after
// the message is appended.
type Message struct {
	Key                string       `json:"key"`
	Body               string       `json:"body"`
	ClientSender       *Ref         `json:"clientSender,omitempty"`
	LabSender          *Ref         `json:"labSender,omitempty"`
	SentByClient       bool         `json:"sentByClient"`
	IsOfficialResponse bool         `json:"isOfficialResponse"`
	Attachments        []Attachment `json:"attachments"`
	Timestamp          time.Time    `json:"timestamp"`
}

// Side returns the party that sent the message.
func (m Message) Side() Side {
	if m.SentByClient {
		return SideClient
	}
	return SideLab
}

// Sender returns the sender ref on the message's side, or nil.
func (m Message) Sender() *Ref {
	if m.SentByClient {
		return m.ClientSender
	}
	return m.LabSender
}

// HistoryEntry records one status change.
type HistoryEntry struct {
	PreviousStatus Status     `json:"previousStatus"`
	Status         Status     `json:"status"`
	Timestamp      time.Time  `json:"timestamp"`
	ChangedBy      rbac.Actor `json:"changedBy"`
	Reason         string     `json:"reason,omitempty"`
	MessageKey     string     `json:"messageKey,omitempty"`
}

type RFI struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"projectId"`
	ClientID       string         `json:"clientId"`
	InitiationType Side           `json:"initiationType"`
	Status         Status         `json:"status"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description"`
	Participants   Participants   `json:"participants"`
	Attachments    []Attachment   `json:"attachments"`
	Conversation   []Message      `json:"conversation"`
	StatusHistory  []HistoryEntry `json:"statusHistory"`
	DateSubmitted  time.Time      `json:"dateSubmitted"`
	DateResolved   *time.Time     `json:"dateResolved,omitempty"`
	SubmittedBy    string         `json:"submittedBy"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	// Version is the optimistic concurrency token checked on save.
	Version int64 `json:"version"`
}

// OfficialResponse returns the message currently flagged official, if any.
func (r RFI) OfficialResponse() (Message, bool) {
	for _, m := range r.Conversation {
		if m.IsOfficialResponse {
			return m, true
		}
	}
	return Message{}, false
}

// Clone deep-copies the RFI so workflow steps never alias the caller's slices.
func (r RFI) Clone() RFI {
	out := r
	out.Participants = r.Participants.clone()
	out.Attachments = cloneAttachments(r.Attachments)
	if r.Conversation != nil {
		out.Conversation = make([]Message, len(r.Conversation))
		for i, m := range r.Conversation {
			m.ClientSender = cloneRef(m.ClientSender)
			m.LabSender = cloneRef(m.LabSender)
			m.Attachments = cloneAttachments(m.Attachments)
			out.Conversation[i] = m
		}
	}
	if r.StatusHistory != nil {
		out.StatusHistory = append([]HistoryEntry(nil), r.StatusHistory...)
	}
	if r.DateResolved != nil {
		t := *r.DateResolved
		out.DateResolved = &t
	}
	return out
}

func (p Participants) clone() Participants {
	return Participants{
		InitiatorLab:    cloneRefs(p.InitiatorLab),
		InitiatorClient: cloneRefs(p.InitiatorClient),
		ReceiverLab:     cloneRefs(p.ReceiverLab),
		ReceiverClient:  cloneRefs(p.ReceiverClient),
	}
}

func cloneRefs(in []Ref) []Ref {
	if in == nil {
		return nil
	}
	return append([]Ref(nil), in...)
}

func cloneRef(in *Ref) *Ref {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func cloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	return append([]Attachment(nil), in...)
}
