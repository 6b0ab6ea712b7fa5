// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// SiteName appears in subjects and headers.
const SiteName = "LibraryHub"

// Row is one label/value line in a notice.
type Row struct {
	Label string
	Value string
}

type notice struct {
	SiteName string
	Heading  string
	Greeting string
	Intro    string
	Rows     []Row
	Footer   string
}

func (n notice) email(to, subject string) Email {
	n.SiteName = SiteName
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("%s: %s", SiteName, subject),
		TextBody: n.text(),
		HTMLBody: n.html(),
	}
}

func (n notice) text() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n%s\n\n", n.Greeting, n.Intro)
	for _, r := range n.Rows {
		fmt.Fprintf(&buf, "%s: %s\n", r.Label, r.Value)
	}
	if n.Footer != "" {
		fmt.Fprintf(&buf, "\n%s\n", n.Footer)
	}
	return buf.String()
}

var noticeTmpl = template.Must(template.New("notice").Parse(noticeHTMLTemplate))

func (n notice) html() string {
	var buf bytes.Buffer
	_ = noticeTmpl.Execute(&buf, n)
	return buf.String()
}

func greet(name string) string {
	if name == "" {
		return "Hello,"
	}
	return "Hello " + name + ","
}

func money(amount int64, currency string) string {
	return fmt.Sprintf("%s %d", currency, amount)
}

// BorrowApprovedData holds data for the issuance notice.
type BorrowApprovedData struct {
	Name      string
	BookTitle string
	DueDate   time.Time
}

// BuildBorrowApproved tells a student their book has been issued.
func BuildBorrowApproved(to string, d BorrowApprovedData) Email {
	return notice{
		Heading:  "Book issued",
		Greeting: greet(d.Name),
		Intro:    "Your borrow request was approved by the library and the book has been issued to you.",
		Rows: []Row{
			{"Book", d.BookTitle},
			{"Due date", d.DueDate.Format("02 Jan 2006")},
		},
		Footer: "Late returns are fined per day. Please return the book on time.",
	}.email(to, "book issued")
}

// BorrowRejectedData holds data for a rejected request.
type BorrowRejectedData struct {
	Name      string
	BookTitle string
	Reason    string
}

// BuildBorrowRejected tells a student their request was declined.
func BuildBorrowRejected(to string, d BorrowRejectedData) Email {
	rows := []Row{{"Book", d.BookTitle}}
	if d.Reason != "" {
		rows = append(rows, Row{"Reason", d.Reason})
	}
	return notice{
		Heading:  "Borrow request declined",
		Greeting: greet(d.Name),
		Intro:    "Your borrow request was not approved.",
		Rows:     rows,
	}.email(to, "borrow request declined")
}

// ReturnVerifiedData holds data for a verified return.
type ReturnVerifiedData struct {
	Name      string
	BookTitle string
	Fine      int64
	Currency  string
}

// BuildReturnVerified confirms a return and reports any fine.
func BuildReturnVerified(to string, d ReturnVerifiedData) Email {
	rows := []Row{{"Book", d.BookTitle}}
	footer := "No fine was charged."
	if d.Fine > 0 {
		rows = append(rows, Row{"Late fine", money(d.Fine, d.Currency)})
		footer = "The fine has been added to your account. Pay it online or at the counter before borrowing again."
	}
	return notice{
		Heading:  "Return confirmed",
		Greeting: greet(d.Name),
		Intro:    "The library has verified the return of your book.",
		Rows:     rows,
		Footer:   footer,
	}.email(to, "return confirmed")
}

// PaymentData holds data for payment notices and receipts.
type PaymentData struct {
	Name          string
	Amount        int64
	Currency      string
	PaymentType   string
	Method        string
	TransactionID string
	ReceiptURL    string
	PaidAt        time.Time
	Notes         string
}

func (d PaymentData) rows() []Row {
	rows := []Row{
		{"Amount", money(d.Amount, d.Currency)},
		{"For", d.PaymentType},
		{"Method", d.Method},
	}
	if d.TransactionID != "" {
		rows = append(rows, Row{"Transaction", d.TransactionID})
	}
	if !d.PaidAt.IsZero() {
		rows = append(rows, Row{"Paid on", d.PaidAt.Format("02 Jan 2006 15:04 MST")})
	}
	if d.ReceiptURL != "" {
		rows = append(rows, Row{"Receipt", d.ReceiptURL})
	}
	return rows
}

// BuildPaymentConfirmed acknowledges a completed payment.
func BuildPaymentConfirmed(to string, d PaymentData) Email {
	return notice{
		Heading:  "Payment received",
		Greeting: greet(d.Name),
		Intro:    "Thank you. Your payment has been received and applied to your account.",
		Rows:     d.rows(),
	}.email(to, "payment received")
}

// BuildPaymentFailed tells a payer their manual payment was not accepted.
func BuildPaymentFailed(to string, d PaymentData) Email {
	rows := d.rows()
	if d.Notes != "" {
		rows = append(rows, Row{"Notes", d.Notes})
	}
	return notice{
		Heading:  "Payment not verified",
		Greeting: greet(d.Name),
		Intro:    "The library could not verify your manual payment.",
		Rows:     rows,
		Footer:   "Contact the library counter with your transfer reference if you believe this is a mistake.",
	}.email(to, "payment not verified")
}

// BuildReceipt wraps a receipt document as an attachment.
func BuildReceipt(to string, d PaymentData, filename string, doc []byte) Email {
	e := notice{
		Heading:  "Payment receipt",
		Greeting: greet(d.Name),
		Intro:    "Your payment receipt is attached.",
		Rows:     d.rows(),
	}.email(to, "payment receipt")
	e.Attachments = []Attachment{{Filename: filename, ContentType: "text/html; charset=utf-8", Data: doc}}
	return e
}

const noticeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 16px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
              <p style="margin: 8px 0 0; font-size: 16px; color: #374151;">{{.Heading}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 12px; font-size: 15px; color: #374151;">{{.Greeting}}</p>
              <p style="margin: 0 0 24px; font-size: 15px; color: #374151; line-height: 1.5;">{{.Intro}}</p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="6" style="font-size: 14px; color: #1f2937;">
                {{range .Rows}}
                <tr>
                  <td style="color: #6b7280; width: 40%;">{{.Label}}</td>
                  <td style="font-weight: 500;">{{.Value}}</td>
                </tr>
                {{end}}
              </table>
            </td>
          </tr>
          {{if .Footer}}
          <tr>
            <td style="padding: 20px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #6b7280; text-align: center;">{{.Footer}}</p>
            </td>
          </tr>
          {{end}}
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
