package document

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// WriteText writes doc as plain text, one item per line.
func WriteText(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, doc.Title)
	fmt.Fprintln(bw, doc.Subtitle)
	for _, s := range doc.Sections {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, s.Title)
		for _, it := range s.Items {
			fmt.Fprintf(bw, "%s %s\n", it.Mark(), it.Text)
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, doc.Signature.Place)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, doc.Signature.Rule)
	fmt.Fprintln(bw, doc.Signature.Name)
	return bw.Flush()
}

// WritePDF lays doc out on A4 pages with the core Arial font. Text is
// translated to cp1252, which covers Portuguese.
func WritePDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if !doc.Date.IsZero() {
		pdf.SetCreationDate(doc.Date.Time)
		pdf.SetModificationDate(doc.Date.Time)
	}
	pdf.SetTitle(doc.Title, true)
	pdf.SetCatalogSort(true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 10, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	for _, s := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, tr(s.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, it := range s.Items {
			pdf.CellFormat(10, 5, it.Mark(), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, 5, tr(it.Text), "", "L", false)
		}
		pdf.Ln(3)
	}

	pdf.Ln(7)
	pdf.CellFormat(0, 10, tr(doc.Signature.Place), "", 1, "R", false, 0, "")
	pdf.Ln(15)
	pdf.CellFormat(0, 10, doc.Signature.Rule, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, tr(doc.Signature.Name), "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	return pdf.Output(w)
}
