// Package devmail serves the in-process mail outbox over HTTP, used only when no mail API is
// configured outside production (GET /dev/mail).
package devmail

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"market-auth/backend/internal/mail"
	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/server/interceptors"
	userdomain "market-auth/backend/internal/user/domain"
)

const devNote = "DEV MODE ONLY"

var hrefPattern = regexp.MustCompile(`href="([^"]+)"`)

// Outbox is the read side of mail.Outbox.
type Outbox interface {
	Last(kind mail.Kind, to string) (mail.Message, bool)
}

// Response is the body of GET /dev/mail.
type Response struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Link    string `json:"link,omitempty"`
	Note    string `json:"note"`
}

// Handler returns the newest outbox message for an address.
type Handler struct {
	outbox Outbox
}

// NewHandler returns a handler reading from outbox.
func NewHandler(outbox Outbox) *Handler {
	return &Handler{outbox: outbox}
}

// Register mounts GET /dev/mail on r.
func (h *Handler) Register(r *mux.Router) {
	r.Handle("/dev/mail", h).Methods(http.MethodGet)
}

// ServeHTTP answers GET /dev/mail?to=<email>&kind=<verification|reset|password_changed>.
// kind defaults to verification.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	to := userdomain.NormalizeEmail(r.URL.Query().Get("to"))
	if to == "" {
		interceptors.WriteError(w, r, apperror.Validation("to is required"))
		return
	}
	kind := mail.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = mail.KindVerification
	}
	msg, ok := h.outbox.Last(kind, to)
	if !ok {
		interceptors.WriteError(w, r, apperror.NotFound("No mail found"))
		return
	}
	resp := Response{To: msg.To, Subject: msg.Subject, Note: devNote}
	if m := hrefPattern.FindStringSubmatch(msg.HTML); m != nil {
		resp.Link = m[1]
	}
	interceptors.WriteJSON(w, http.StatusOK, resp)
}
