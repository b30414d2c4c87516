package report

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"crowdwatch/internal/model"

	"github.com/go-pdf/fpdf"
)

const (
	titleX      = 180.0
	textX       = 50.0
	itemX       = 70.0
	lineStep    = 20.0
	bottomLimit = 40.0
)

// Title returns the report heading for mode, e.g. "Live Crowd Report".
func Title(mode string) string {
	return capitalize(mode) + " Crowd Report"
}

// Filename returns the attachment name offered for mode.
func Filename(mode string) string {
	return mode + "_crowd_report.pdf"
}

// Generate writes an A4 PDF summarizing counts: the title, the generation
// time, the person count and one line per detected label.
func Generate(w io.Writer, mode string, counts model.Counts, generatedAt time.Time) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle(Title(mode), true)
	pdf.SetCreator("crowdwatch", true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// The core fonts are cp1252; labels and modes arrive as UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(titleX, 60, tr(Title(mode)))

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(textX, 100, "Generated On: "+generatedAt.Format("2006-01-02 15:04:05"))
	pdf.Text(textX, 130, fmt.Sprintf("Total People Count: %d", counts.People()))

	y := 160.0
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(textX, y, "Detected Objects:")
	pdf.SetFont("Helvetica", "", 12)

	for _, label := range counts.Labels() {
		y += lineStep
		if y > pageHeight-bottomLimit {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "", 12)
			y = 60
		}
		pdf.Text(itemX, y, tr(fmt.Sprintf("- %s: %d", label, counts[label])))
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return pdf.Output(w)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
