// Package report renders audit and ranking results as PDF documents for
// reviewers.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/MikeSquared-Agency/Flexing/internal/audit"
	"github.com/MikeSquared-Agency/Flexing/internal/ranking"
)

type column struct {
	title string
	width float64
	align string
}

func newDocument(title, subtitle string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("flexing", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, subtitle)
	pdf.Ln(10)
	return pdf
}

func header(pdf *gofpdf.Fpdf, cols []column) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func row(pdf *gofpdf.Fpdf, cols []column, values ...string) {
	for i, c := range cols {
		pdf.CellFormat(c.width, 6, values[i], "1", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "-"
}

// WriteAuditPDF renders the high scorer audit for manual review.
func WriteAuditPDF(w io.Writer, sum *audit.Summary) error {
	pdf := newDocument(
		"High Scorer Audit",
		fmt.Sprintf("Threshold %.0f | examined %d | flagged %d | %s",
			sum.Threshold, sum.Examined, len(sum.Flagged), sum.AuditedAt.Format(time.RFC3339)),
	)

	cols := []column{
		{"Evaluation", 62, "L"},
		{"Evaluator", 34, "L"},
		{"Year", 14, "C"},
		{"Score", 18, "R"},
		{"Missing evidence", 30, "C"},
		{"Integrity", 22, "C"},
	}
	header(pdf, cols)
	for _, f := range sum.Flagged {
		row(pdf, cols,
			f.ID,
			f.EvaluatorID,
			fmt.Sprintf("%d", f.Year),
			fmt.Sprintf("%.2f", f.StoredScore),
			yesNo(f.ViolationA),
			yesNo(f.ViolationB),
		)
	}
	if len(sum.Flagged) == 0 {
		pdf.Ln(4)
		pdf.Cell(0, 6, "No violations found.")
	}
	return pdf.Output(w)
}

// WriteRankingPDF renders the candidate ranking for one year.
func WriteRankingPDF(w io.Writer, year int, entries []ranking.Entry) error {
	pdf := newDocument(
		fmt.Sprintf("Candidate Ranking %d", year),
		fmt.Sprintf("%d candidates | generated %s", len(entries), time.Now().UTC().Format(time.RFC3339)),
	)

	cols := []column{
		{"Rank", 14, "C"},
		{"Name", 64, "L"},
		{"Unit", 56, "L"},
		{"Average", 22, "R"},
		{"Evaluations", 24, "C"},
	}
	header(pdf, cols)
	for _, e := range entries {
		row(pdf, cols,
			fmt.Sprintf("%d", e.Rank),
			e.Name,
			e.Unit,
			fmt.Sprintf("%.2f", e.AverageScore),
			fmt.Sprintf("%d", e.EvaluationCount),
		)
	}
	return pdf.Output(w)
}
