package quotations

import (
	"time"

	"github.com/labdesk/labdesk/internal/billing"
)

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "draft"
	QuotationStatusSent     QuotationStatus = "sent"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusRejected QuotationStatus = "rejected"
	QuotationStatusInvoiced QuotationStatus = "invoiced"
	QuotationStatusPaid     QuotationStatus = "paid"
)

// Valid reports whether s is a known status.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted,
		QuotationStatusRejected, QuotationStatusInvoiced, QuotationStatusPaid:
		return true
	}
	return false
}

// Category partitions line items for totals and display.
type Category string

const (
	CategoryLabTests     Category = "lab_tests"
	CategoryFieldTests   Category = "field_tests"
	CategoryMobilization Category = "mobilization"
	CategoryReporting    Category = "reporting"
)

// Item is a quotation line. Items carry lab and field tests, OtherItems carry
// mobilization and reporting activities.
type Item struct {
	billing.LineItem
	Category Category `json:"category"`
}

type Quotation struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	Status         QuotationStatus `json:"status"`
	Currency       string          `json:"currency"`
	RevisionNumber int             `json:"revisionNumber"`
	Items          []Item          `json:"items"`
	OtherItems     []Item          `json:"otherItems"`
	VATPercentage  float64         `json:"vatPercentage"`
	RejectionNotes string          `json:"rejectionNotes,omitempty"`
	Revisions      []Revision      `json:"revisions"`
	SentAt         *time.Time      `json:"sentAt,omitempty"`
	DecidedAt      *time.Time      `json:"decidedAt,omitempty"`
	InvoicedAt     *time.Time      `json:"invoicedAt,omitempty"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	// Version is the optimistic concurrency token checked on save.
	Version int64 `json:"version"`
}

// Revision is an immutable snapshot of a superseded quotation state.
type Revision struct {
	RevisionNumber int             `json:"revisionNumber"`
	Status         QuotationStatus `json:"status"`
	Currency       string          `json:"currency"`
	VATPercentage  float64         `json:"vatPercentage"`
	Items          []Item          `json:"items"`
	OtherItems     []Item          `json:"otherItems"`
	RejectionNotes string          `json:"rejectionNotes,omitempty"`
	Totals         billing.Totals  `json:"totals"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Groups partitions the live items into billing groups in display order.
func (q Quotation) Groups() []billing.Group {
	return groupItems(q.Items, q.OtherItems)
}

// Totals derives the amounts for the live revision.
func (q Quotation) Totals() billing.Totals {
	return billing.ComputeTotals(q.Groups(), q.VATPercentage)
}

// Groups partitions the snapshot items into billing groups.
func (r Revision) Groups() []billing.Group {
	return groupItems(r.Items, r.OtherItems)
}

var groupOrder = []Category{CategoryLabTests, CategoryFieldTests, CategoryMobilization, CategoryReporting}

func groupItems(items, other []Item) []billing.Group {
	byCategory := make(map[Category][]billing.LineItem, len(groupOrder))
	for _, list := range [][]Item{items, other} {
		for _, item := range list {
			byCategory[item.Category] = append(byCategory[item.Category], item.LineItem)
		}
	}
	groups := make([]billing.Group, 0, len(groupOrder))
	for _, c := range groupOrder {
		groups = append(groups, billing.Group{Name: string(c), Items: byCategory[c]})
	}
	return groups
}

// Clone deep-copies the quotation so transitions never alias the caller's slices.
func (q Quotation) Clone() Quotation {
	out := q
	out.Items = cloneItems(q.Items)
	out.OtherItems = cloneItems(q.OtherItems)
	if q.Revisions != nil {
		out.Revisions = make([]Revision, len(q.Revisions))
		for i, r := range q.Revisions {
			r.Items = cloneItems(r.Items)
			r.OtherItems = cloneItems(r.OtherItems)
			out.Revisions[i] = r
		}
	}
	out.SentAt = cloneTime(q.SentAt)
	out.DecidedAt = cloneTime(q.DecidedAt)
	out.InvoicedAt = cloneTime(q.InvoicedAt)
	out.PaidAt = cloneTime(q.PaidAt)
	return out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	return append([]Item(nil), items...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
