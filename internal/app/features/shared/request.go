// internal/app/features/shared/request.go
package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/limits"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DecodeJSON reads r's body into v. An empty body leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.BadRequest, "request body is not valid JSON", err)
	}
	return nil
}

// PathID parses the {name} URL parameter as an ObjectID.
func PathID(r *http.Request, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.BadRequest, "invalid "+name)
	}
	return oid, nil
}

// ParseID parses an optional ObjectID from a body or query field.
// Blank yields nil.
func ParseID(s, field string) (*primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, apperr.New(apperr.BadRequest, "invalid "+field)
	}
	return &oid, nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC
// midnight). Blank yields nil.
func ParseDate(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.New(apperr.BadRequest, "invalid "+field)
}
