package quotations

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/billing"
	"github.com/labdesk/labdesk/internal/shared"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func labItem(desc string, price, qty float64) Item {
	return Item{
		LineItem: billing.LineItem{Description: desc, Price: price, Quantity: qty, LineTotal: price * qty},
		Category: CategoryLabTests,
	}
}

func draftQuotation() Quotation {
	return Quotation{
		ID:            "q-1",
		ProjectID:     "p-1",
		Status:        QuotationStatusDraft,
		Currency:      "USD",
		VATPercentage: 18,
		Items:         []Item{labItem("Compressive strength", 100, 2), labItem("Slump", 50, 1)},
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
}

func TestQuotationTotalsDraft(t *testing.T) {
	totals := draftQuotation().Totals()
	require.Equal(t, 250.0, totals.Subtotal)
	require.Equal(t, 45.0, totals.VATAmount)
	require.Equal(t, 295.0, totals.TotalWithVAT)
}

func TestCanTransitionTable(t *testing.T) {
	all := []QuotationStatus{
		QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted,
		QuotationStatusRejected, QuotationStatusInvoiced, QuotationStatusPaid,
	}
	allowed := map[[2]QuotationStatus]bool{
		{QuotationStatusDraft, QuotationStatusSent}:        true,
		{QuotationStatusSent, QuotationStatusAccepted}:     true,
		{QuotationStatusSent, QuotationStatusRejected}:     true,
		{QuotationStatusAccepted, QuotationStatusInvoiced}: true,
		{QuotationStatusInvoiced, QuotationStatusPaid}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			require.Equal(t, allowed[[2]QuotationStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	q := draftQuotation()
	var err error

	q, err = q.Send(t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, q.Status)
	require.NotNil(t, q.SentAt)

	q, err = q.Accept(t0.Add(2 * time.Hour))
	require.NoError(t, err)
	require.NotNil(t, q.DecidedAt)

	q, err = q.Invoice(t0.Add(3 * time.Hour))
	require.NoError(t, err)
	require.NotNil(t, q.InvoicedAt)

	q, err = q.MarkPaid(t0.Add(4 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, QuotationStatusPaid, q.Status)
	require.Equal(t, 5, StageIndex(&q))
	require.Equal(t, []int{1, 2, 3, 4}, StagesCompleted(&q))
}

func TestSentCannotJumpToPaid(t *testing.T) {
	sent, err := draftQuotation().Send(t0)
	require.NoError(t, err)

	out, err := sent.MarkPaid(t0.Add(time.Minute))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Equal(t, QuotationStatusSent, out.Status)
	require.Equal(t, QuotationStatusSent, sent.Status)
	require.Nil(t, sent.PaidAt)
}

func TestRejectRequiresNotes(t *testing.T) {
	sent, err := draftQuotation().Send(t0)
	require.NoError(t, err)

	out, err := sent.Reject("   ", t0)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, QuotationStatusSent, out.Status)
	require.Empty(t, out.RejectionNotes)

	rejected, err := sent.Reject("scope too broad", t0)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusRejected, rejected.Status)
	require.Equal(t, "scope too broad", rejected.RejectionNotes)
}

func TestRejectChecksTransitionBeforeNotes(t *testing.T) {
	_, err := draftQuotation().Reject("", t0)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestReviseArchivesLiveState(t *testing.T) {
	sent, err := draftQuotation().Send(t0)
	require.NoError(t, err)
	rejected, err := sent.Reject("too expensive", t0.Add(time.Hour))
	require.NoError(t, err)

	revised, err := rejected.Revise("staff-1", t0.Add(2*time.Hour))
	require.NoError(t, err)

	require.Equal(t, QuotationStatusDraft, revised.Status)
	require.Equal(t, 1, revised.RevisionNumber)
	require.Empty(t, revised.RejectionNotes)
	require.Nil(t, revised.SentAt)
	require.Nil(t, revised.DecidedAt)
	require.Equal(t, rejected.Items, revised.Items)

	require.Len(t, revised.Revisions, 1)
	snap := revised.Revisions[0]
	require.Equal(t, 0, snap.RevisionNumber)
	require.Equal(t, QuotationStatusRejected, snap.Status)
	require.Equal(t, "too expensive", snap.RejectionNotes)
	require.Equal(t, 295.0, snap.Totals.TotalWithVAT)
	require.Equal(t, "staff-1", snap.CreatedBy)

	// The snapshot must not alias the live items.
	revised.Items[0].Price = 1
	require.Equal(t, 100.0, revised.Revisions[0].Items[0].Price)
}

func TestReviseChainNumbersIncrease(t *testing.T) {
	q := draftQuotation()
	for i := 0; i < 3; i++ {
		var err error
		q, err = q.Send(t0)
		require.NoError(t, err)
		q, err = q.Revise("staff-1", t0)
		require.NoError(t, err)
	}
	require.Equal(t, 3, q.RevisionNumber)
	require.Len(t, q.Revisions, 3)
	for i, r := range q.Revisions {
		require.Equal(t, 2-i, r.RevisionNumber)
	}
	require.Equal(t, 3, q.MaxRevisionNumber())
}

func TestReviseDraftRejected(t *testing.T) {
	_, err := draftQuotation().Revise("staff-1", t0)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestEditDraft(t *testing.T) {
	currency := "eur"
	vat := 20.0
	items := []Item{{LineItem: billing.LineItem{Description: " Core sampling ", Price: 40, Quantity: 3}}}
	other := []Item{{LineItem: billing.LineItem{Description: "Site visit", Price: 100, Quantity: 1}, Category: CategoryMobilization}}

	out, err := draftQuotation().EditDraft(DraftChanges{Currency: &currency, VATPercentage: &vat, Items: &items, OtherItems: &other}, t0)
	require.NoError(t, err)
	require.Equal(t, "EUR", out.Currency)
	require.Equal(t, 20.0, out.VATPercentage)
	require.Equal(t, "Core sampling", out.Items[0].Description)
	require.Equal(t, CategoryLabTests, out.Items[0].Category)
	require.Equal(t, 120.0, out.Items[0].LineTotal)
	require.Equal(t, 220.0, out.Totals().Subtotal)
	require.Equal(t, 44.0, out.Totals().VATAmount)
}

func TestEditDraftValidation(t *testing.T) {
	bad := "ZZZ"
	_, err := draftQuotation().EditDraft(DraftChanges{Currency: &bad}, t0)
	require.ErrorIs(t, err, shared.ErrValidation)

	vat := 120.0
	_, err = draftQuotation().EditDraft(DraftChanges{VATPercentage: &vat}, t0)
	require.ErrorIs(t, err, shared.ErrValidation)

	wrongGroup := []Item{{LineItem: billing.LineItem{Description: "Report", Price: 1, Quantity: 1}, Category: CategoryReporting}}
	_, err = draftQuotation().EditDraft(DraftChanges{Items: &wrongGroup}, t0)
	require.ErrorIs(t, err, shared.ErrValidation)

	negative := []Item{labItem("Slump", -5, 1)}
	_, err = draftQuotation().EditDraft(DraftChanges{Items: &negative}, t0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateVATPrecision(t *testing.T) {
	for _, v := range []float64{0, 18, 7.5, 18.125, 100} {
		require.NoError(t, ValidateVAT(v), v)
	}
	for _, v := range []float64{18.12345, 0.0001, -1, 100.001, math.NaN(), math.Inf(1)} {
		require.ErrorIs(t, ValidateVAT(v), shared.ErrValidation, v)
	}

	vat := 18.12345
	_, err := draftQuotation().EditDraft(DraftChanges{VATPercentage: &vat}, t0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEditLockedAfterSend(t *testing.T) {
	sent, err := draftQuotation().Send(t0)
	require.NoError(t, err)
	vat := 5.0
	_, err = sent.EditDraft(DraftChanges{VATPercentage: &vat}, t0)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestStageIndexWithoutQuotation(t *testing.T) {
	require.Equal(t, 1, StageIndex(nil))
	require.Empty(t, StagesCompleted(nil))
}
