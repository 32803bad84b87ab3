package email

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// GenerateInvoicePDF renders a purchase or refund invoice to a temp file
// and returns its path. The caller attaches it to the outgoing email.
func GenerateInvoicePDF(kind, invoiceRef, buyerName, courseTitle string, amount decimal.Decimal, currency string) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Belta Courses")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, fmt.Sprintf("%s invoice %s", kind, invoiceRef))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Billed to: %s", buyerName))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Course: %s", courseTitle))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Amount: %s %s", amount.StringFixed(2), currency))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Date: %s", time.Now().Format("Jan 2, 2006")))

	path := filepath.Join(os.TempDir(), fmt.Sprintf("invoice_%s.pdf", invoiceRef))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("error generating invoice PDF: %w", err)
	}

	return path, nil
}
