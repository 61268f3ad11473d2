package report

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"gitlab.com/servio/api/station-feedback-service/internal/model"
)

// renderUrgentHTML builds the email body for an immediate negative-feedback
// alert. Photos are inlined as base64 data URIs so the alert is readable
// without opening the attachment.
func renderUrgentHTML(f *model.Feedback) string {
	var b strings.Builder

	b.WriteString(`<html><body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">`)
	b.WriteString(`<h2 style="color: #d9534f;">Negative Feedback Alert</h2>`)
	fmt.Fprintf(&b, `<p><strong>Phone:</strong> %s</p>`, f.Phone)
	fmt.Fprintf(&b, `<p><strong>Time:</strong> %s</p>`, f.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, `<p><strong>RO Number:</strong> %s</p>`, html.EscapeString(orDash(f.RONumber)))

	b.WriteString(`<div style="background-color: #f9f9f9; padding: 15px; border-left: 4px solid #d9534f; margin: 20px 0;">`)
	fmt.Fprintf(&b, `<p><strong>Air Rating:</strong> %s/3</p>`, ratingOrDash(f.RatingAir))
	fmt.Fprintf(&b, `<p><strong>Washroom Rating:</strong> %s/3</p>`, ratingOrDash(f.RatingWashroom))
	comment := "No comment"
	if f.Comment != "" {
		// Customer-supplied text must not break out of the markup.
		comment = html.EscapeString(f.Comment)
	}
	fmt.Fprintf(&b, `<p><strong>Comment:</strong> %s</p>`, comment)
	b.WriteString(`</div>`)

	b.WriteString(`<h3>Attached Photos:</h3>`)
	writeInlineImage(&b, f.PhotoAir, "Air Facility Photo")
	writeInlineImage(&b, f.PhotoWashroom, "Washroom Photo")
	writeInlineImage(&b, f.PhotoReceipt, "Receipt Photo")

	b.WriteString(`<p style="font-size: 12px; color: #777; margin-top: 30px;">`)
	b.WriteString(`This is an automated message. Please check the attached PDF for full details.`)
	b.WriteString(`</p></body></html>`)

	return b.String()
}

func writeInlineImage(b *strings.Builder, img []byte, label string) {
	if len(img) == 0 {
		return
	}
	encoded := base64.StdEncoding.EncodeToString(img)
	b.WriteString(`<div style="margin-bottom: 15px;">`)
	fmt.Fprintf(b, `<p><strong>%s:</strong></p>`, label)
	fmt.Fprintf(b, `<img src="data:image/jpeg;base64,%s" style="max-width: 300px; max-height: 300px; border: 1px solid #ddd; border-radius: 4px;">`, encoded)
	b.WriteString(`</div>`)
}

func ratingOrDash(r *int) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *r)
}
