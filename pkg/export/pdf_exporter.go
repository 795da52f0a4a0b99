package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Field is one labelled line of a receipt.
type Field struct {
	Label string
	Value string
}

// Receipt describes a single payment acknowledgement.
type Receipt struct {
	Institute string
	Title     string
	Number    string
	Fields    []Field
	Summary   []Field
	Footer    string
}

// PDFExporter renders receipts into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Receipt lays out a one page A5 receipt.
func (e *PDFExporter) Receipt(doc Receipt) ([]byte, error) {
	if doc.Number == "" {
		return nil, fmt.Errorf("receipt requires a number")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetTitle(doc.Title+" "+doc.Number, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 9, tr(doc.Institute), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, tr("Receipt No. "+doc.Number), "", 1, "R", false, 0, "")
	pdf.Ln(3)

	writeFields(pdf, tr, doc.Fields, false)
	if len(doc.Summary) > 0 {
		pdf.Ln(4)
		writeFields(pdf, tr, doc.Summary, true)
	}

	if doc.Footer != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 4, tr(doc.Footer), "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFields(pdf *gofpdf.Fpdf, tr func(string) string, fields []Field, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	for _, f := range fields {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(45, 7, tr(f.Label), "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", style, 9)
		pdf.CellFormat(0, 7, tr(f.Value), "1", 1, "", false, 0, "")
	}
}
