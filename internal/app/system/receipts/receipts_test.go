package receipts

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "/receipts/", "Govt. Arts College Library", zap.NewNop())
	require.NoError(t, err)
	return s
}

func completedPayment() models.Payment {
	paid := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	return models.Payment{
		ID:            primitive.NewObjectID(),
		Amount:        30,
		Currency:      "INR",
		PaymentType:   models.PaymentTypeFine,
		PaymentMethod: models.MethodUPI,
		Status:        models.PaymentCompleted,
		TransactionID: "UPI123456",
		PaidAt:        &paid,
	}
}

func Test_Generate_WritesAndLoads(t *testing.T) {
	s := newStore(t)
	p := completedPayment()

	ref, err := s.Generate(context.Background(), p, models.User{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/receipts/receipt-"+p.ID.Hex()))
	assert.True(t, s.Exists(ref))

	doc, err := s.Load(ref)
	require.NoError(t, err)
	body := string(doc.Data)
	assert.Contains(t, body, "INR 30")
	assert.Contains(t, body, "UPI123456")
	assert.Contains(t, body, "Asha")
	assert.Contains(t, body, "RCPT-")
}

func Test_Generate_RejectsIncompletePayment(t *testing.T) {
	s := newStore(t)
	p := completedPayment()
	p.Status = models.PaymentVerifying

	_, err := s.Generate(context.Background(), p, models.User{})
	assert.Error(t, err)
}

func Test_Generate_UniqueReferences(t *testing.T) {
	s := newStore(t)
	p := completedPayment()

	a, err := s.Generate(context.Background(), p, models.User{})
	require.NoError(t, err)
	b, err := s.Generate(context.Background(), p, models.User{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func Test_Load_StaleReference(t *testing.T) {
	s := newStore(t)
	ref, err := s.Generate(context.Background(), completedPayment(), models.User{})
	require.NoError(t, err)

	doc, _ := s.Load(ref)
	require.NoError(t, os.Remove(s.Dir()+"/"+doc.Filename))

	assert.False(t, s.Exists(ref))
	_, err = s.Load(ref)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func Test_Load_RejectsForeignReferences(t *testing.T) {
	s := newStore(t)
	for _, ref := range []string{"", "/other/x.html", "/receipts/../etc/passwd", "/receipts/a/b.html", "/receipts/..", "https://cdn.example.com/r.pdf"} {
		_, err := s.Load(ref)
		assert.ErrorIs(t, err, ErrNotFound, ref)
	}
}
