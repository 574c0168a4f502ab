// Package report renders printable summaries.
package report

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"
)

// Row is one label/value line of a section.
type Row struct {
	Label string
	Value string
}

// Section is a titled table.
type Section struct {
	Heading string
	Rows    []Row
}

// Summary is a whole report, already translated.
type Summary struct {
	Title     string
	Subtitle  string
	Sections  []Section
	EmptyText string
}

// WriteSummaryPDF writes s as an A4 PDF.
func WriteSummaryPDF(w io.Writer, s Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate so accented Spanish text survives.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(s.Title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(s.Title))
	pdf.Ln(10)
	if s.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.Cell(0, 6, tr(s.Subtitle))
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(10)
	}

	for _, sec := range s.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, tr(sec.Heading))
		pdf.Ln(9)
		pdf.SetFont("Arial", "", 11)
		if len(sec.Rows) == 0 && s.EmptyText != "" {
			pdf.Cell(0, 7, tr(s.EmptyText))
			pdf.Ln(7)
		}
		for i, row := range sec.Rows {
			fill := i%2 == 0
			pdf.SetFillColor(240, 240, 240)
			pdf.CellFormat(120, 7, tr(row.Label), "", 0, "L", fill, 0, "")
			pdf.CellFormat(60, 7, tr(row.Value), "", 1, "R", fill, 0, "")
		}
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
