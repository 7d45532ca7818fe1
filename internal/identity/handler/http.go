package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	identitydomain "market-auth/backend/internal/identity/domain"
	"market-auth/backend/internal/identity/service"
	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/policy/engine"
	"market-auth/backend/internal/server/interceptors"
	sessiondomain "market-auth/backend/internal/session/domain"
	userdomain "market-auth/backend/internal/user/domain"
)

// maxBodyBytes caps request bodies on the credential endpoints.
const maxBodyBytes = 1 << 20

// Route names passed to the access policy. VERIFIED_ONLY_ROUTES refers to these.
const (
	RouteVerifyToken = "verify-token"
	RouteSignOut     = "sign-out"
	RouteProfile     = "profile"
)

// Success messages.
const (
	MsgEmailVerified  = "Thanks for verifying your email."
	MsgCheckInbox     = "Please check your inbox."
	MsgSignedOut      = "Signed out."
	MsgPasswordUpdate = "Your password has been updated."
	MsgInvalidBody    = "Invalid request body"
)

// AuthFlows is the set of credential operations the HTTP surface exposes.
type AuthFlows interface {
	SignUp(ctx context.Context, req identitydomain.SignUpRequest) (*userdomain.Profile, error)
	VerifyEmail(ctx context.Context, req identitydomain.TokenRequest) error
	ResendVerification(ctx context.Context, userID string) error
	SignIn(ctx context.Context, req identitydomain.SignInRequest) (*service.SignInResult, error)
	Refresh(ctx context.Context, refreshToken string) (*sessiondomain.TokenPair, error)
	SignOut(ctx context.Context, userID, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, req identitydomain.TokenRequest) error
	ResetPassword(ctx context.Context, req identitydomain.ResetPasswordRequest) error
	Profile(ctx context.Context, userID string) (*userdomain.Profile, error)
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	flows  AuthFlows
	tokens interceptors.AccessVerifier
	users  interceptors.UserLoader
	policy engine.Evaluator
}

// NewAuthHandler returns a handler backed by flows. tokens and users back the bearer middleware;
// policy gates the bearer routes and may be nil.
func NewAuthHandler(flows AuthFlows, tokens interceptors.AccessVerifier, users interceptors.UserLoader, policy engine.Evaluator) *AuthHandler {
	return &AuthHandler{flows: flows, tokens: tokens, users: users, policy: policy}
}

// Register mounts the /auth routes on r. rateLimit wraps the public credential endpoints.
func (h *AuthHandler) Register(r *mux.Router, rateLimit func(http.Handler) http.Handler) {
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}
	auth := r.PathPrefix("/auth").Subrouter()

	public := auth.NewRoute().Subrouter()
	public.Use(rateLimit)
	public.HandleFunc("/sign-up", h.SignUp).Methods(http.MethodPost)
	public.HandleFunc("/verify", h.VerifyEmail).Methods(http.MethodPost)
	public.HandleFunc("/sign-in", h.SignIn).Methods(http.MethodPost)
	public.HandleFunc("/refresh-token", h.RefreshToken).Methods(http.MethodPost)
	public.HandleFunc("/forget-pass", h.ForgetPassword).Methods(http.MethodPost)
	public.HandleFunc("/verify-pass-reset-token", h.VerifyPassResetToken).Methods(http.MethodPost)
	public.HandleFunc("/reset-pass", h.ResetPassword).Methods(http.MethodPost)

	authed := interceptors.Authenticate(h.tokens, h.users)
	auth.Handle("/verify-token", h.bearer(authed, RouteVerifyToken, h.ResendVerification)).Methods(http.MethodGet)
	auth.Handle("/sign-out", h.bearer(authed, RouteSignOut, h.SignOut)).Methods(http.MethodPost)
	auth.Handle("/profile", h.bearer(authed, RouteProfile, h.Profile)).Methods(http.MethodGet)
}

func (h *AuthHandler) bearer(authed func(http.Handler) http.Handler, route string, fn http.HandlerFunc) http.Handler {
	return authed(interceptors.RequireAccess(h.policy, route)(fn))
}

// SignUp handles POST /auth/sign-up.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.SignUpRequest
	if !decode(w, r, &req) {
		return
	}
	profile, err := h.flows.SignUp(r.Context(), req)
	if err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusCreated, map[string]any{"user": profile})
}

// VerifyEmail handles POST /auth/verify.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.TokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.flows.VerifyEmail(r.Context(), req); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	writeMessage(w, MsgEmailVerified)
}

// ResendVerification handles GET /auth/verify-token.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	userID, _ := interceptors.GetUserID(r.Context())
	if err := h.flows.ResendVerification(r.Context(), userID); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	writeMessage(w, MsgCheckInbox)
}

// SignIn handles POST /auth/sign-in.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.SignInRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.flows.SignIn(r.Context(), req)
	if err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, res)
}

// RefreshToken handles POST /auth/refresh-token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.flows.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

// SignOut handles POST /auth/sign-out.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := interceptors.GetUserID(r.Context())
	if err := h.flows.SignOut(r.Context(), userID, req.RefreshToken); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	writeMessage(w, MsgSignedOut)
}

// ForgetPassword handles POST /auth/forget-pass.
func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.flows.ForgotPassword(r.Context(), req.Email); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	writeMessage(w, MsgCheckInbox)
}

// VerifyPassResetToken handles POST /auth/verify-pass-reset-token.
func (h *AuthHandler) VerifyPassResetToken(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.TokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.flows.ValidateResetToken(r.Context(), req); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// ResetPassword handles POST /auth/reset-pass.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req identitydomain.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.flows.ResetPassword(r.Context(), req); err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	writeMessage(w, MsgPasswordUpdate)
}

// Profile handles GET /auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := interceptors.GetUserID(r.Context())
	profile, err := h.flows.Profile(r.Context(), userID)
	if err != nil {
		interceptors.WriteError(w, r, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

// decode reads a JSON body into v. An empty body leaves v zero so field validation reports what is
// missing. On failure it writes the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		interceptors.WriteError(w, r, apperror.Validation(MsgInvalidBody))
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, msg string) {
	interceptors.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}
