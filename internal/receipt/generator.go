package receipt

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/eckposgo/internal/pos"
)

// Roll geometry for 80mm thermal paper
const (
	rollWidth  = 80.0
	marginX    = 5.0
	lineHeight = 4.5
	qrSize     = 24.0
)

// GeneratePDF renders a receipt onto an 80mm roll. Offline captures
// get an OFFLINE banner so a temporary receipt is never mistaken for a
// server-issued one. The QR at the bottom encodes the receipt
// reference.
func GeneratePDF(r *pos.Receipt, storeName string) ([]byte, error) {
	// Height grows with the number of lines; fixed blocks are header,
	// totals and the QR footer.
	height := 70.0 + float64(len(r.Draft.Items))*lineHeight + qrSize
	if r.Offline {
		height += lineHeight * 2
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: rollWidth, Ht: height},
	})
	pdf.SetMargins(marginX, marginX, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	usable := rollWidth - 2*marginX

	pdf.SetFont("Courier", "B", 11)
	pdf.CellFormat(usable, lineHeight, storeName, "", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 8)
	pdf.CellFormat(usable, lineHeight, "Receipt "+r.Ref, "", 1, "C", false, 0, "")
	pdf.CellFormat(usable, lineHeight, r.IssuedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")

	if r.Offline {
		pdf.SetFont("Courier", "B", 10)
		pdf.CellFormat(usable, lineHeight*2, "*** OFFLINE SALE ***", "", 1, "C", false, 0, "")
		pdf.SetFont("Courier", "", 8)
	}

	pdf.CellFormat(usable, lineHeight, dashes(usable, pdf), "", 1, "C", false, 0, "")

	for _, item := range r.Draft.Items {
		name := item.Name
		if len(name) > 20 {
			name = name[:20]
		}
		left := fmt.Sprintf("%-20s x%d", name, item.Quantity)
		right := item.LineTotal.StringFixed(2)
		pdf.CellFormat(usable*0.7, lineHeight, left, "", 0, "L", false, 0, "")
		pdf.CellFormat(usable*0.3, lineHeight, right, "", 1, "R", false, 0, "")
	}

	pdf.CellFormat(usable, lineHeight, dashes(usable, pdf), "", 1, "C", false, 0, "")

	totalRow(pdf, usable, "Subtotal", r.Draft.SubTotal.StringFixed(2))
	totalRow(pdf, usable, "Tax", r.Draft.TaxAmount.StringFixed(2))
	if !r.Draft.DiscountAmount.IsZero() {
		totalRow(pdf, usable, "Discount", "-"+r.Draft.DiscountAmount.StringFixed(2))
	}
	pdf.SetFont("Courier", "B", 9)
	totalRow(pdf, usable, "TOTAL", r.Draft.TotalAmount.StringFixed(2))
	pdf.SetFont("Courier", "", 8)
	totalRow(pdf, usable, "Tendered", r.Draft.AmountTendered.StringFixed(2))
	totalRow(pdf, usable, "Change", r.Draft.ChangeDue.StringFixed(2))

	// QR footer
	png, err := qrcode.Encode(r.Ref, qrcode.Low, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt QR: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("receipt_qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("receipt_qr", (rollWidth-qrSize)/2, pdf.GetY()+2, qrSize, qrSize, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func totalRow(pdf *gofpdf.Fpdf, usable float64, label, value string) {
	pdf.CellFormat(usable*0.6, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(usable*0.4, lineHeight, value, "", 1, "R", false, 0, "")
}

func dashes(usable float64, pdf *gofpdf.Fpdf) string {
	out := ""
	for pdf.GetStringWidth(out+"-") < usable {
		out += "-"
	}
	return out
}
