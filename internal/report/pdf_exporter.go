package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const maxPDFDetailRows = 10

// PDFExporter renders a report summary as a PDF document
type PDFExporter struct {
	Title string
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{Title: "Software Vulnerability Audit"}
}

// Export generates the PDF for r
func (e *PDFExporter) Export(r *Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(e.Title, false)
	pdf.AddPage()

	e.addHeader(pdf, r)
	e.addPolicy(pdf, r)
	e.addSoftware(pdf, r)
	e.addProducts(pdf, r)
	e.addDetails(pdf, r)
	e.addFailures(pdf, r)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, r *Report) {
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 12, e.Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Run: %s", r.RunID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Software audited: %d, matched: %d", r.SoftwareCount, len(r.MatchedVulnerabilities)), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addPolicy(pdf *gofpdf.Fpdf, r *Report) {
	if r.Policy == nil {
		return
	}

	red, green, blue := 52, 199, 89
	label := "PASSED"
	if !r.Policy.Passed {
		red, green, blue = 220, 53, 69
		label = "FAILED"
	}

	pdf.SetFillColor(red, green, blue)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, "  Policy "+label, "", 1, "L", true, 0, "")

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(0, 5, r.Policy.Reason, "", "L", false)
	pdf.Ln(6)
}

func (e *PDFExporter) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	if pdf.GetY() > 250 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func (e *PDFExporter) tableHeader(pdf *gofpdf.Fpdf, widths []float64, labels []string) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(60, 60, 60)
	for i, label := range labels {
		ln := 0
		if i == len(labels)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 7, label, "1", ln, "L", true, 0, "")
	}
	pdf.SetFont("Arial", "", 8)
}

func (e *PDFExporter) addSoftware(pdf *gofpdf.Fpdf, r *Report) {
	e.sectionTitle(pdf, "Matched Software")
	if len(r.MatchedVulnerabilities) == 0 {
		e.empty(pdf, "No installed software matched the vulnerability corpus")
		return
	}

	widths := []float64{60, 25, 40, 15, 50}
	e.tableHeader(pdf, widths, []string{"Software", "Version", "Publisher", "CVEs", "Products"})
	for _, m := range r.MatchedVulnerabilities {
		if pdf.GetY() > 270 {
			pdf.AddPage()
		}
		pdf.CellFormat(widths[0], 6, truncate(m.Name, 36), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, truncate(m.Version, 14), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, truncate(m.Publisher, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%d", m.CVECount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, truncate(strings.Join(m.MatchedProducts, ", "), 30), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addProducts(pdf *gofpdf.Fpdf, r *Report) {
	e.sectionTitle(pdf, fmt.Sprintf("Products (page %d of %d)", r.ViewData.Page, r.ViewData.TotalPages))
	if len(r.ViewData.Products) == 0 {
		e.empty(pdf, "No products")
		return
	}

	widths := []float64{150, 40}
	e.tableHeader(pdf, widths, []string{"Product", "Installations"})
	for _, p := range r.ViewData.Products {
		pdf.CellFormat(widths[0], 6, truncate(p.Name, 90), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, fmt.Sprintf("%d", p.Count), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addDetails(pdf *gofpdf.Fpdf, r *Report) {
	e.sectionTitle(pdf, "Recent Vulnerabilities")
	if len(r.CVEDetails) == 0 {
		e.empty(pdf, "No vulnerability details")
		return
	}

	widths := []float64{40, 25, 15, 20, 90}
	for _, d := range r.CVEDetails {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 8, d.Name, "", 1, "L", false, 0, "")

		e.tableHeader(pdf, widths, []string{"CVE", "Published", "Score", "Exploited", "Description"})
		for i, v := range d.Vulnerabilities {
			if i >= maxPDFDetailRows {
				break
			}
			if pdf.GetY() > 270 {
				pdf.AddPage()
			}
			red, green, blue := scoreColor(v.Score)
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(widths[0], 6, v.ID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 6, v.Published, "1", 0, "L", false, 0, "")
			pdf.SetTextColor(red, green, blue)
			pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.1f", v.Score), "1", 0, "R", false, 0, "")
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(widths[3], 6, yesNo(v.Exploited), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[4], 6, truncate(v.Description, 58), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}
}

func (e *PDFExporter) addFailures(pdf *gofpdf.Fpdf, r *Report) {
	if len(r.Failures) == 0 {
		return
	}
	e.sectionTitle(pdf, "Incomplete Batches")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(220, 53, 69)
	for _, f := range r.Failures {
		pdf.MultiCell(0, 5, fmt.Sprintf("Batch %d (records %d-%d): %s", f.Batch, f.Start, f.End-1, f.Error), "", "L", false)
	}
}

func (e *PDFExporter) empty(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Arial", "I", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 7, text, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

// scoreColor returns RGB color based on CVSS score
func scoreColor(score float64) (r, g, b int) {
	switch {
	case score >= 9.0:
		return 220, 53, 69
	case score >= 7.0:
		return 255, 149, 0
	case score >= 4.0:
		return 204, 153, 0
	default:
		return 52, 199, 89
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
