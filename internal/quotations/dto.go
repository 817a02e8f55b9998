package quotations

import "github.com/labdesk/labdesk/internal/billing"

type ItemRequest struct {
	Category    Category `json:"category" validate:"omitempty,oneof=lab_tests field_tests mobilization reporting"`
	Description string   `json:"description" validate:"required,max=500"`
	Price       float64  `json:"price" validate:"gte=0"`
	Quantity    float64  `json:"quantity" validate:"gte=0"`
}

type StartBillingRequest struct {
	Currency      string        `json:"currency" validate:"required,len=3"`
	VATPercentage float64       `json:"vatPercentage" validate:"gte=0,lte=100"`
	Items         []ItemRequest `json:"items" validate:"dive"`
	OtherItems    []ItemRequest `json:"otherItems" validate:"dive"`
}

type UpdateDraftRequest struct {
	Currency      *string        `json:"currency,omitempty" validate:"omitempty,len=3"`
	VATPercentage *float64       `json:"vatPercentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	Items         *[]ItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	OtherItems    *[]ItemRequest `json:"otherItems,omitempty" validate:"omitempty,dive"`
}

type RejectRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func toItems(in []ItemRequest) []Item {
	out := make([]Item, 0, len(in))
	for _, r := range in {
		out = append(out, Item{
			LineItem: billing.LineItem{Description: r.Description, Price: r.Price, Quantity: r.Quantity},
			Category: r.Category,
		})
	}
	return out
}

func (r StartBillingRequest) input() StartBillingInput {
	return StartBillingInput{
		Currency:      r.Currency,
		VATPercentage: r.VATPercentage,
		Items:         toItems(r.Items),
		OtherItems:    toItems(r.OtherItems),
	}
}

func (r UpdateDraftRequest) changes() DraftChanges {
	changes := DraftChanges{Currency: r.Currency, VATPercentage: r.VATPercentage}
	if r.Items != nil {
		items := toItems(*r.Items)
		changes.Items = &items
	}
	if r.OtherItems != nil {
		items := toItems(*r.OtherItems)
		changes.OtherItems = &items
	}
	return changes
}
