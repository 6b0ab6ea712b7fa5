// internal/app/features/userinfo/handler.go
package userinfo

import (
	"errors"
	"net/http"
	"time"

	userstore "github.com/dalemusser/libraryhub/internal/app/store/users"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler serves the caller's identity and account standing.
type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

type userInfo struct {
	IsAuthenticated  bool       `json:"isAuthenticated"`
	ID               string     `json:"id,omitempty"`
	Name             string     `json:"name,omitempty"`
	Email            string     `json:"email,omitempty"`
	Role             string     `json:"role,omitempty"`
	MembershipStatus string     `json:"membership_status,omitempty"`
	MembershipExpiry *time.Time `json:"membership_expiry,omitempty"`
	TotalFines       int64      `json:"total_fines"`
	BooksHeld        int        `json:"books_held"`
}

// ServeUserInfo handles GET /api/user.
//
// Anonymous callers get { "isAuthenticated": false }. Signed-in callers get
// their profile plus outstanding fines and the number of books they hold,
// which is what decides whether a new borrow request will be accepted.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		respond.OK(w, http.StatusOK, "", userInfo{})
		return
	}

	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			respond.OK(w, http.StatusOK, "", userInfo{})
			return
		}
		respond.Error(w, h.Log, err)
		return
	}

	respond.OK(w, http.StatusOK, "", userInfo{
		IsAuthenticated:  true,
		ID:               u.ID.Hex(),
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		MembershipStatus: u.MembershipStatus,
		MembershipExpiry: u.MembershipExpiry,
		TotalFines:       u.TotalFines,
		BooksHeld:        len(u.HeldBooks),
	})
}
