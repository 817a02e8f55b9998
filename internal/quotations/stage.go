package quotations

// StageIndex maps the project's quotation onto the billing stage shown in
// the project timeline. Projects without a quotation sit in stage 1.
func StageIndex(q *Quotation) int {
	if q == nil {
		return 1
	}
	switch q.Status {
	case QuotationStatusSent:
		return 2
	case QuotationStatusAccepted, QuotationStatusRejected:
		return 3
	case QuotationStatusInvoiced:
		return 4
	case QuotationStatusPaid:
		return 5
	default:
		return 1
	}
}

// StagesCompleted lists the stages before the current one.
func StagesCompleted(q *Quotation) []int {
	stage := StageIndex(q)
	out := make([]int, 0, stage-1)
	for i := 1; i < stage; i++ {
		out = append(out, i)
	}
	return out
}
