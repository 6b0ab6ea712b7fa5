// Package receipts renders payment receipts and keeps them on local disk,
// served under a URL prefix.
package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/retry"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a receipt reference has no document behind it.
var ErrNotFound = errors.New("receipt not found")

// Document is a stored receipt.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Store writes receipts under dir and hands out references under urlPrefix.
type Store struct {
	dir       string
	urlPrefix string
	college   string
	log       *zap.Logger
	now       func() time.Time
}

// New creates a Store, creating dir if needed.
func New(dir, urlPrefix, college string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	return &Store{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		college:   college,
		log:       logger,
		now:       time.Now,
	}, nil
}

// Dir returns the directory receipts are written to.
func (s *Store) Dir() string { return s.dir }

type receiptView struct {
	College     string
	Number      string
	IssuedAt    string
	PayerName   string
	PayerEmail  string
	Amount      int64
	Currency    string
	PaymentType string
	Method      string
	Transaction string
	PaidAt      string
	Description string
}

var receiptTmpl = template.Must(template.New("receipt").Parse(receiptHTML))

// Generate renders a receipt for p and returns its reference (URL path).
// Only completed payments get receipts.
func (s *Store) Generate(ctx context.Context, p models.Payment, payer models.User) (string, error) {
	if p.Status != models.PaymentCompleted {
		return "", fmt.Errorf("receipt for %s payment", p.Status)
	}

	id := uuid.New()
	view := receiptView{
		College:     s.college,
		Number:      "RCPT-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12]),
		IssuedAt:    s.now().UTC().Format("02 Jan 2006 15:04 MST"),
		PayerName:   payer.Name,
		PayerEmail:  payer.Email,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PaymentType: p.PaymentType,
		Method:      p.PaymentMethod,
		Transaction: p.TransactionID,
		Description: p.Description,
	}
	if p.PaidAt != nil {
		view.PaidAt = p.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}

	name := fmt.Sprintf("receipt-%s-%s.html", p.ID.Hex(), id.String())
	err := retry.Do(ctx, func(context.Context) error {
		return s.write(name, buf.Bytes())
	}, retry.WithMaxAttempts(3))
	if err != nil {
		return "", err
	}

	s.log.Info("receipt generated",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("file", name))
	return s.urlPrefix + "/" + name, nil
}

func (s *Store) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".receipt-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// Exists reports whether ref still points at a stored document.
func (s *Store) Exists(ref string) bool {
	p, ok := s.pathFor(ref)
	if !ok {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// Load reads the document behind ref.
func (s *Store) Load(ref string) (Document, error) {
	p, ok := s.pathFor(ref)
	if !ok {
		return Document{}, ErrNotFound
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return Document{Filename: filepath.Base(p), ContentType: "text/html; charset=utf-8", Data: data}, nil
}

// pathFor maps a reference back to a file, rejecting anything outside dir.
func (s *Store) pathFor(ref string) (string, bool) {
	if ref == "" || !strings.HasPrefix(ref, s.urlPrefix+"/") {
		return "", false
	}
	name := path.Base(strings.TrimPrefix(ref, s.urlPrefix+"/"))
	if name == "." || name == ".." || name == "/" || name != strings.TrimPrefix(ref, s.urlPrefix+"/") {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

const receiptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Receipt {{.Number}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #1f2937; max-width: 640px; margin: 40px auto;">
  <h1 style="font-size: 22px; margin-bottom: 4px;">{{.College}}</h1>
  <p style="color: #6b7280; margin-top: 0;">Payment receipt</p>
  <table cellpadding="6" style="width: 100%; border-collapse: collapse; font-size: 14px;">
    <tr><td>Receipt no.</td><td><strong>{{.Number}}</strong></td></tr>
    <tr><td>Issued</td><td>{{.IssuedAt}}</td></tr>
    <tr><td>Received from</td><td>{{.PayerName}} &lt;{{.PayerEmail}}&gt;</td></tr>
    <tr><td>Amount</td><td><strong>{{.Currency}} {{.Amount}}</strong></td></tr>
    <tr><td>Towards</td><td>{{.PaymentType}}</td></tr>
    <tr><td>Method</td><td>{{.Method}}</td></tr>
    {{if .Transaction}}<tr><td>Transaction</td><td>{{.Transaction}}</td></tr>{{end}}
    {{if .PaidAt}}<tr><td>Paid on</td><td>{{.PaidAt}}</td></tr>{{end}}
    {{if .Description}}<tr><td>Description</td><td>{{.Description}}</td></tr>{{end}}
  </table>
  <p style="font-size: 12px; color: #9ca3af; margin-top: 32px;">This is a computer-generated receipt.</p>
</body>
</html>`
