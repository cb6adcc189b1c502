// Package report lays out an analysis as a printable PDF.
package report

import (
	"math"
	"strconv"

	"github.com/helpcomp/finsight/analysis"
	"github.com/shopspring/decimal"
)

const (
	ContentType = "application/pdf"
	Filename    = "FinSight_Report.pdf"

	// DefaultTitle heads every report unless configured otherwise.
	DefaultTitle = "FinSight AI – Financial Analysis Report"

	incomeCategory = "Income"
	bullet         = "•"
)

type Kind int

const (
	KindTitle Kind = iota
	KindHeading
	KindParagraph
	KindSpacer
	KindTable
	KindBullet
)

// Block is one layout element. Which fields matter depends on Kind.
type Block struct {
	Kind Kind
	Text string
	// Strong is appended to Text in bold.
	Strong string
	Height float64
	Header []string
	Rows   [][]string
}

// Document is the ordered list of blocks making up a report.
type Document struct {
	Title  string
	Blocks []Block
}

// Table returns the first table block, if any.
func (d Document) Table() (Block, bool) {
	for _, b := range d.Blocks {
		if b.Kind == KindTable {
			return b, true
		}
	}
	return Block{}, false
}

// Bullets returns the texts of the bullet blocks in order.
func (d Document) Bullets() []string {
	var out []string
	for _, b := range d.Blocks {
		if b.Kind == KindBullet {
			out = append(out, b.Text)
		}
	}
	return out
}

// Build lays out title, summary, category breakdown and insights. Missing
// fields render as zero or empty sections. Income is left out of the
// breakdown and every amount is shown as an absolute value.
func Build(title string, rec analysis.Record) Document {
	if title == "" {
		title = DefaultTitle
	}
	doc := Document{Title: title}
	add := func(b ...Block) { doc.Blocks = append(doc.Blocks, b...) }

	add(
		Block{Kind: KindTitle, Text: title},
		Block{Kind: KindSpacer, Height: 20},
	)

	add(
		Block{Kind: KindHeading, Text: "Summary"},
		Block{Kind: KindSpacer, Height: 10},
		Block{
			Kind:   KindParagraph,
			Text:   "Total Monthly Spending: ",
			Strong: "$" + amount(rec.TotalSpending()),
		},
		Block{Kind: KindSpacer, Height: 15},
	)

	table := Block{Kind: KindTable, Header: []string{"Category", "Amount ($)"}}
	for _, ct := range rec.CategoryTotals() {
		if ct.Category == incomeCategory {
			continue
		}
		table.Rows = append(table.Rows, []string{ct.Category, amount(ct.Amount)})
	}
	add(
		Block{Kind: KindHeading, Text: "Category Breakdown"},
		Block{Kind: KindSpacer, Height: 10},
		table,
		Block{Kind: KindSpacer, Height: 20},
	)

	add(
		Block{Kind: KindHeading, Text: "AI Insights"},
		Block{Kind: KindSpacer, Height: 10},
	)
	for _, insight := range rec.Insights() {
		add(
			Block{Kind: KindBullet, Text: bullet + " " + insight},
			Block{Kind: KindSpacer, Height: 6},
		)
	}
	return doc
}

// amount formats the absolute value with two decimals. Rounding applies to
// the nearest float64, so 2.675 prints as 2.67.
func amount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return strconv.FormatFloat(math.Abs(f), 'f', 2, 64)
}
