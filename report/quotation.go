package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"strconv"
	"strings"

	"golang.org/x/text/currency"

	"github.com/labdesk/labdesk/internal/quotations"
)

//go:embed templates/*.html
var templateFS embed.FS

var groupTitles = map[string]string{
	string(quotations.CategoryLabTests):     "Laboratory tests",
	string(quotations.CategoryFieldTests):   "Field tests",
	string(quotations.CategoryMobilization): "Mobilization",
	string(quotations.CategoryReporting):    "Reporting",
}

// HTMLConverter turns an HTML document into a PDF.
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// QuotationRenderer produces client-facing PDFs of the live quotation revision.
type QuotationRenderer struct {
	converter HTMLConverter
	issuer    string
	tmpl      *template.Template
}

// NewQuotationRenderer parses the embedded template.
func NewQuotationRenderer(converter HTMLConverter, issuer string) (*QuotationRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/quotation.html")
	if err != nil {
		return nil, err
	}
	return &QuotationRenderer{converter: converter, issuer: issuer, tmpl: tmpl}, nil
}

// RenderQuotation implements quotations.PDFRenderer.
func (r *QuotationRenderer) RenderQuotation(ctx context.Context, view *quotations.View) ([]byte, error) {
	if r.converter == nil {
		return nil, errors.New("report: converter not configured")
	}
	html, err := r.HTML(view)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, html)
}

// HTML renders the quotation document without converting it.
func (r *QuotationRenderer) HTML(view *quotations.View) (string, error) {
	if view == nil || view.Quotation == nil {
		return "", errors.New("report: quotation required")
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, r.document(view)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type documentLine struct {
	Description string
	Price       string
	Quantity    string
	Total       string
}

type documentGroup struct {
	Title string
	Lines []documentLine
	Total string
}

type document struct {
	Issuer         string
	ID             string
	ProjectID      string
	Revision       int
	Status         string
	Issued         string
	Currency       string
	Groups         []documentGroup
	Subtotal       string
	VATPercentage  string
	VATAmount      string
	TotalWithVAT   string
	RejectionNotes string
}

func (r *QuotationRenderer) document(view *quotations.View) document {
	q := view.Quotation
	money := amountFormatter(q.Currency)
	issued := q.CreatedAt
	if q.SentAt != nil {
		issued = *q.SentAt
	}
	doc := document{
		Issuer:         r.issuer,
		ID:             q.ID,
		ProjectID:      q.ProjectID,
		Revision:       q.RevisionNumber,
		Status:         strings.ReplaceAll(string(q.Status), "_", " "),
		Issued:         issued.Format("2 January 2006"),
		Currency:       q.Currency,
		Subtotal:       money(view.Totals.Subtotal),
		VATPercentage:  strconv.FormatFloat(q.VATPercentage, 'f', -1, 64),
		VATAmount:      money(view.Totals.VATAmount),
		TotalWithVAT:   money(view.Totals.TotalWithVAT),
		RejectionNotes: q.RejectionNotes,
	}
	totals := make(map[string]float64, len(view.GroupTotals))
	for _, gt := range view.GroupTotals {
		totals[gt.Name] = gt.Total
	}
	for _, g := range q.Groups() {
		if len(g.Items) == 0 {
			continue
		}
		group := documentGroup{Title: groupTitles[g.Name], Total: money(totals[g.Name])}
		if group.Title == "" {
			group.Title = g.Name
		}
		for _, item := range g.Items {
			group.Lines = append(group.Lines, documentLine{
				Description: item.Description,
				Price:       money(item.Price),
				Quantity:    strconv.FormatFloat(item.Quantity, 'f', -1, 64),
				Total:       money(item.LineTotal),
			})
		}
		doc.Groups = append(doc.Groups, group)
	}
	return doc
}

// amountFormatter prints amounts with the minor-unit scale of the currency,
// two decimals when the code is unknown.
func amountFormatter(code string) func(float64) string {
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return func(v float64) string {
		return strconv.FormatFloat(v, 'f', scale, 64)
	}
}
