package quotations

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/labdesk/labdesk/internal/billing"
	"github.com/labdesk/labdesk/internal/shared"
)

var transitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent},
	QuotationStatusSent:     {QuotationStatusAccepted, QuotationStatusRejected},
	QuotationStatusAccepted: {QuotationStatusInvoiced},
	QuotationStatusInvoiced: {QuotationStatusPaid},
}

// CanTransition reports whether the lifecycle permits from → to. Returning to
// draft is only possible through a new revision.
func CanTransition(from, to QuotationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidTransition(op string, from, to QuotationStatus) error {
	return shared.E(shared.KindInvalidTransition, op, "quotation cannot move from %s to %s", from, to)
}

func (q Quotation) moveTo(op string, to QuotationStatus, now time.Time) (Quotation, error) {
	if !CanTransition(q.Status, to) {
		return q, invalidTransition(op, q.Status, to)
	}
	next := q.Clone()
	next.Status = to
	next.UpdatedAt = now
	return next, nil
}

// Send delivers a draft to the client and locks editing.
func (q Quotation) Send(now time.Time) (Quotation, error) {
	next, err := q.moveTo("send", QuotationStatusSent, now)
	if err != nil {
		return q, err
	}
	next.SentAt = &now
	return next, nil
}

// Accept records the client's acceptance of a sent quotation.
func (q Quotation) Accept(now time.Time) (Quotation, error) {
	next, err := q.moveTo("accept", QuotationStatusAccepted, now)
	if err != nil {
		return q, err
	}
	next.DecidedAt = &now
	return next, nil
}

// Reject records the client's rejection. Notes are mandatory.
func (q Quotation) Reject(notes string, now time.Time) (Quotation, error) {
	next, err := q.moveTo("reject", QuotationStatusRejected, now)
	if err != nil {
		return q, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return q, shared.Validation("reject", "rejection notes are required")
	}
	next.RejectionNotes = notes
	next.DecidedAt = &now
	return next, nil
}

// Invoice finalises billing for an accepted quotation.
func (q Quotation) Invoice(now time.Time) (Quotation, error) {
	next, err := q.moveTo("invoice", QuotationStatusInvoiced, now)
	if err != nil {
		return q, err
	}
	next.InvoicedAt = &now
	return next, nil
}

// MarkPaid closes the lifecycle.
func (q Quotation) MarkPaid(now time.Time) (Quotation, error) {
	next, err := q.moveTo("pay", QuotationStatusPaid, now)
	if err != nil {
		return q, err
	}
	next.PaidAt = &now
	return next, nil
}

// Snapshot captures the live state as an immutable revision entry.
func (q Quotation) Snapshot(by string, now time.Time) Revision {
	c := q.Clone()
	return Revision{
		RevisionNumber: q.RevisionNumber,
		Status:         q.Status,
		Currency:       q.Currency,
		VATPercentage:  q.VATPercentage,
		Items:          c.Items,
		OtherItems:     c.OtherItems,
		RejectionNotes: q.RejectionNotes,
		Totals:         q.Totals(),
		CreatedBy:      by,
		CreatedAt:      now,
	}
}

// MaxRevisionNumber returns the highest revision number in the family,
// including the live one.
func (q Quotation) MaxRevisionNumber() int {
	highest := q.RevisionNumber
	for _, r := range q.Revisions {
		if r.RevisionNumber > highest {
			highest = r.RevisionNumber
		}
	}
	return highest
}

// Revise archives the live state at the head of Revisions and opens the next
// revision as a draft seeded with the prior items.
func (q Quotation) Revise(by string, now time.Time) (Quotation, error) {
	if q.Status == QuotationStatusDraft {
		return q, shared.E(shared.KindInvalidTransition, "revise", "quotation is already a draft")
	}
	snapshot := q.Snapshot(by, now)
	next := q.Clone()
	next.Revisions = append([]Revision{snapshot}, next.Revisions...)
	next.RevisionNumber = q.MaxRevisionNumber() + 1
	next.Status = QuotationStatusDraft
	next.RejectionNotes = ""
	next.SentAt = nil
	next.DecidedAt = nil
	next.InvoicedAt = nil
	next.PaidAt = nil
	next.UpdatedAt = now
	return next, nil
}

// DraftChanges holds the editable fields of a draft. Nil fields are unchanged.
type DraftChanges struct {
	Currency      *string
	VATPercentage *float64
	Items         *[]Item
	OtherItems    *[]Item
}

// EditDraft applies changes to a draft, recomputing line totals.
func (q Quotation) EditDraft(changes DraftChanges, now time.Time) (Quotation, error) {
	if q.Status != QuotationStatusDraft {
		return q, shared.E(shared.KindInvalidTransition, "edit", "quotation in status %s is locked for editing", q.Status)
	}
	next := q.Clone()
	if changes.Currency != nil {
		code, err := NormalizeCurrency(*changes.Currency)
		if err != nil {
			return q, err
		}
		next.Currency = code
	}
	if changes.VATPercentage != nil {
		if err := ValidateVAT(*changes.VATPercentage); err != nil {
			return q, err
		}
		next.VATPercentage = *changes.VATPercentage
	}
	if changes.Items != nil {
		items, err := normalizeItems("items", *changes.Items, CategoryLabTests, CategoryFieldTests)
		if err != nil {
			return q, err
		}
		next.Items = items
	}
	if changes.OtherItems != nil {
		items, err := normalizeItems("otherItems", *changes.OtherItems, CategoryMobilization, CategoryReporting)
		if err != nil {
			return q, err
		}
		next.OtherItems = items
	}
	next.UpdatedAt = now
	return next, nil
}

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased.
func NormalizeCurrency(raw string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", shared.Validation("currency", "unknown currency code %q", raw)
	}
	return unit.String(), nil
}

// VATScale is the number of decimal places kept for VAT percentages.
const VATScale = 3

// ValidateVAT checks the VAT percentage range and precision.
func ValidateVAT(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
		return shared.Validation("vat", "vat percentage must be between 0 and 100")
	}
	if decimal.NewFromFloat(v).Exponent() < -VATScale {
		return shared.Validation("vat", "vat percentage allows at most %d decimal places", VATScale)
	}
	return nil
}

func normalizeItems(field string, items []Item, allowed ...Category) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for i, item := range items {
		if item.Category == "" {
			item.Category = allowed[0]
		}
		if !containsCategory(allowed, item.Category) {
			return nil, shared.Validation(field, "line %d: category %s not allowed here", i+1, item.Category)
		}
		item.Description = strings.TrimSpace(item.Description)
		if item.Description == "" {
			return nil, shared.Validation(field, "line %d: description required", i+1)
		}
		if item.Price < 0 || item.Quantity < 0 {
			return nil, shared.Validation(field, "line %d: price and quantity must not be negative", i+1)
		}
		item.LineTotal = billing.LineTotal(item.Price, item.Quantity)
		out = append(out, item)
	}
	return out, nil
}

func containsCategory(list []Category, c Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}
