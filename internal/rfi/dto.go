package rfi

type RefRequest struct {
	ID    string `json:"id" validate:"required,max=64"`
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type AttachmentRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"contentType" validate:"max=100"`
}

type SubmitRequest struct {
	ProjectID       string              `json:"projectId" validate:"required"`
	ClientID        string              `json:"clientId"`
	InitiationType  Side                `json:"initiationType" validate:"required,oneof=lab client"`
	Subject         string              `json:"subject" validate:"required,max=300"`
	Description     string              `json:"description" validate:"max=10000"`
	InitiatorLab    []RefRequest        `json:"initiatorLab" validate:"dive"`
	InitiatorClient []RefRequest        `json:"initiatorClient" validate:"dive"`
	ReceiverLab     []RefRequest        `json:"receiverLab" validate:"dive"`
	ReceiverClient  []RefRequest        `json:"receiverClient" validate:"dive"`
	Attachments     []AttachmentRequest `json:"attachments" validate:"dive"`
}

type MessageRequest struct {
	Key          string              `json:"key" validate:"max=64"`
	Body         string              `json:"body" validate:"max=10000"`
	ClientSender *RefRequest         `json:"clientSender"`
	LabSender    *RefRequest         `json:"labSender"`
	SentByClient bool                `json:"sentByClient"`
	Attachments  []AttachmentRequest `json:"attachments" validate:"dive"`
}

type TransitionRequest struct {
	Status Status `json:"status" validate:"required,oneof=open pending_response resolved closed"`
	Reason string `json:"reason" validate:"max=2000"`
}

type MarkOfficialRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func toRefs(in []RefRequest) []Ref {
	out := make([]Ref, 0, len(in))
	for _, r := range in {
		out = append(out, Ref(r))
	}
	return out
}

func toRef(in *RefRequest) *Ref {
	if in == nil {
		return nil
	}
	ref := Ref(*in)
	return &ref
}

func toAttachments(in []AttachmentRequest) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, Attachment(a))
	}
	return out
}

func (r SubmitRequest) input() SubmitInput {
	return SubmitInput{
		ProjectID:      r.ProjectID,
		ClientID:       r.ClientID,
		InitiationType: r.InitiationType,
		Subject:        r.Subject,
		Description:    r.Description,
		Participants: Participants{
			InitiatorLab:    toRefs(r.InitiatorLab),
			InitiatorClient: toRefs(r.InitiatorClient),
			ReceiverLab:     toRefs(r.ReceiverLab),
			ReceiverClient:  toRefs(r.ReceiverClient),
		},
		Attachments: toAttachments(r.Attachments),
	}
}

func (r MessageRequest) message() Message {
	return Message{
		Key:          r.Key,
		Body:         r.Body,
		ClientSender: toRef(r.ClientSender),
		LabSender:    toRef(r.LabSender),
		SentByClient: r.SentByClient,
		Attachments:  toAttachments(r.Attachments),
	}
}
