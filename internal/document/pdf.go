package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	pdfMargin     = 15.0
	pdfIndent     = 4.0
	pdfLine       = 5.0
	pdfMaxImageH  = 120.0
	pxToMM        = 25.4 / 96
	pdfFontFamily = "history"
)

func renderPDF(v view, fontPath string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(v.Title, true)
	pdf.SetCreator("history-recorder", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)

	// Text is always set in a UTF-8 font; the core PDF fonts only
	// cover cp1252. fontPath replaces the embedded Go fonts.
	family := pdfFontFamily
	if fontPath != "" {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(family, style, fontPath)
		}
	} else {
		pdf.AddUTF8FontFromBytes(family, "", goregular.TTF)
		pdf.AddUTF8FontFromBytes(family, "B", gobold.TTF)
		pdf.AddUTF8FontFromBytes(family, "I", goitalic.TTF)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load font %q: %w", fontPath, err)
	}

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*pdfMargin - pdfIndent

	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 8, v.Title, "", "L", false)
	pdf.SetFont(family, "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.MultiCell(0, pdfLine, v.Summary, "", "L", false)
	pdf.Ln(4)

	for i, it := range v.Items {
		// Keep the sender line and its accent marker on the same page.
		if pdf.GetY()+3*pdfLine > pageH-pdfMargin {
			pdf.AddPage()
		}
		y := pdf.GetY()
		pdf.SetFillColor(it.RGB[0], it.RGB[1], it.RGB[2])
		pdf.Rect(pdfMargin, y+1.2, 2.5, 2.5, "F")

		pdf.SetX(pdfMargin + pdfIndent)
		pdf.SetFont(family, "B", 10)
		pdf.SetTextColor(it.RGB[0], it.RGB[1], it.RGB[2])
		name := it.Sender
		pdf.CellFormat(pdf.GetStringWidth(name)+2, pdfLine, name, "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, pdfLine, it.Time, "", 1, "L", false, 0, "")

		pdf.SetTextColor(31, 35, 40)
		pdf.SetFont(family, "", 10)
		pdf.SetX(pdfMargin + pdfIndent)
		switch it.State {
		case StateNone:
			pdf.MultiCell(contentW, pdfLine, it.Body, "", "L", false)
		case StateInline:
			if !placeImage(pdf, fmt.Sprintf("asset-%d", i), it, contentW) {
				pdf.SetX(pdfMargin + pdfIndent)
				pdf.SetFont(family, "I", 10)
				pdf.SetTextColor(185, 28, 28)
				pdf.MultiCell(contentW, pdfLine, "["+placeholder(it.AssetName)+"]", "", "L", false)
			}
		case StateReference:
			pdf.MultiCell(contentW, pdfLine, fmt.Sprintf("[attachment: %s, %s]", it.AssetName, it.AssetSize), "", "L", false)
		case StateUnavailable:
			pdf.SetFont(family, "I", 10)
			pdf.SetTextColor(185, 28, 28)
			pdf.MultiCell(contentW, pdfLine, "["+placeholder(it.AssetName)+"]", "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// placeImage embeds an inline image scaled to fit the content width.
// It reports false when the image could not be registered.
func placeImage(pdf *fpdf.Fpdf, name string, it item, maxW float64) bool {
	opts := fpdf.ImageOptions{ImageType: imageType(it.MimeType)}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(it.Payload))
	if !pdf.Ok() {
		pdf.ClearError()
		return false
	}
	w, h := float64(it.Width)*pxToMM, float64(it.Height)*pxToMM
	if w <= 0 || h <= 0 {
		w, h = maxW/2, maxW/2
	}
	if w > maxW {
		h, w = h*maxW/w, maxW
	}
	if h > pdfMaxImageH {
		w, h = w*pdfMaxImageH/h, pdfMaxImageH
	}
	pdf.ImageOptions(name, pdfMargin+pdfIndent, pdf.GetY(), w, h, true, opts, 0, "")
	return pdf.Ok()
}
