package projects

import "time"

// ClientRef points at a client organisation.
type ClientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Contact is a client-side contact person.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Project groups billing and RFIs for one engagement.
type Project struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	InternalID      string      `json:"internalId"`
	StartDate       *time.Time  `json:"startDate,omitempty"`
	EndDate         *time.Time  `json:"endDate,omitempty"`
	Clients         []ClientRef `json:"clients"`
	Contacts        []Contact   `json:"contacts"`
	QuotationID     *string     `json:"quotationId,omitempty"`
	StagesCompleted []int       `json:"stagesCompleted"`
}

// ContactEmails returns the non-empty contact addresses in project order.
func (p Project) ContactEmails() []string {
	out := make([]string, 0, len(p.Contacts))
	for _, c := range p.Contacts {
		if c.Email != "" {
			out = append(out, c.Email)
		}
	}
	return out
}

// HasContact reports whether id is one of the project's contact persons.
func (p Project) HasContact(id string) bool {
	for _, c := range p.Contacts {
		if c.ID == id {
			return true
		}
	}
	return false
}
