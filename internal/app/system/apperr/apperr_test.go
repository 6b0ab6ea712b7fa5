package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIs_MatchesKind(t *testing.T) {
	err := New(OutstandingFines, "please clear your pending fines before borrowing. Outstanding: 30")
	if !errors.Is(err, ErrOutstandingFines) {
		t.Error("expected errors.Is to match on kind")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect a different kind to match")
	}
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("approve borrow: %w", New(Conflict, ""))
	if !errors.Is(err, ErrConflict) {
		t.Error("expected wrapped error to match")
	}
	if KindOf(err) != Conflict {
		t.Errorf("KindOf = %q, want %q", KindOf(err), Conflict)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Errorf("KindOf = %q, want %q", got, Internal)
	}
	if got := Message(errors.New("mongo: secret details")); got != "internal server error" {
		t.Errorf("Message leaked internal text: %q", got)
	}
}

func TestMessage_DefaultAndCustom(t *testing.T) {
	if got := Message(ErrUnavailable); got != "book not available" {
		t.Errorf("default message = %q", got)
	}
	if got := Message(New(NotFound, "Book not found")); got != "Book not found" {
		t.Errorf("custom message = %q", got)
	}
}

func TestError_IncludesCause(t *testing.T) {
	err := Wrap(GatewayError, "order creation failed", errors.New("timeout"))
	if err.Error() != "order creation failed: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrGateway) {
		t.Error("expected gateway kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{Forbidden, http.StatusForbidden},
		{Unauthorized, http.StatusUnauthorized},
		{InvalidState, http.StatusConflict},
		{DuplicateTransaction, http.StatusConflict},
		{InvalidAmount, http.StatusBadRequest},
		{OutstandingFines, http.StatusUnprocessableEntity},
		{GatewayError, http.StatusBadGateway},
		{RateLimited, http.StatusTooManyRequests},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := HTTPStatus(tt.kind); got != tt.want {
				t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}
