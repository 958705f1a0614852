package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate is the content of a transfer certificate.
type Certificate struct {
	Title      string
	Reference  string
	IssuedAt   time.Time
	Fields     []Field
	Disclaimer string
}

// Field is one labelled line on a certificate.
type Field struct {
	Label string
	Value string
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize      string
	FontFamily    string
	FontSize      float64
	TitleFontSize float64
	LabelWidth    float64
	AccentColor   PDFColor
	Margins       PDFMargins
	DateFormat    string
}

// PDFColor represents an RGB color
type PDFColor struct {
	R, G, B int
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left, Right, Top, Bottom float64
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:      "A4",
		FontFamily:    "Arial",
		FontSize:      11,
		TitleFontSize: 18,
		LabelWidth:    55,
		AccentColor:   PDFColor{R: 68, G: 114, B: 196},
		Margins:       PDFMargins{Left: 20, Right: 20, Top: 25, Bottom: 20},
		DateFormat:    "2006-01-02 15:04 MST",
	}
}

// PDFGenerator renders certificates
type PDFGenerator struct {
	options PDFOptions
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	return &PDFGenerator{options: options}
}

// WriteCertificate renders cert as a single-page PDF.
func (g *PDFGenerator) WriteCertificate(w io.Writer, cert Certificate) error {
	o := g.options
	pdf := gofpdf.New("P", "mm", o.PageSize, "")
	pdf.SetMargins(o.Margins.Left, o.Margins.Top, o.Margins.Right)
	pdf.SetAutoPageBreak(true, o.Margins.Bottom)
	pdf.SetTitle(cert.Title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(o.FontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, "Reference "+cert.Reference, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(o.FontFamily, "B", o.TitleFontSize)
	pdf.SetTextColor(o.AccentColor.R, o.AccentColor.G, o.AccentColor.B)
	pdf.CellFormat(0, 12, cert.Title, "", 1, "C", false, 0, "")

	pdf.SetFont(o.FontFamily, "", o.FontSize-1)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s", cert.IssuedAt.Format(o.DateFormat)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pageWidth, _ := pdf.GetPageSize()
	pdf.SetDrawColor(o.AccentColor.R, o.AccentColor.G, o.AccentColor.B)
	pdf.Line(o.Margins.Left, pdf.GetY(), pageWidth-o.Margins.Right, pdf.GetY())
	pdf.Ln(6)

	pdf.SetTextColor(0, 0, 0)
	for _, f := range cert.Fields {
		pdf.SetFont(o.FontFamily, "B", o.FontSize)
		pdf.CellFormat(o.LabelWidth, 8, f.Label+":", "", 0, "L", false, 0, "")
		pdf.SetFont(o.FontFamily, "", o.FontSize)
		pdf.MultiCell(0, 8, f.Value, "", "L", false)
	}

	if cert.Disclaimer != "" {
		pdf.Ln(10)
		pdf.SetFont(o.FontFamily, "I", o.FontSize-2)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, cert.Disclaimer, "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render certificate: %w", err)
	}
	return nil
}
