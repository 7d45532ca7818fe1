package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"market-auth/backend/internal/identity/service"
	"market-auth/backend/internal/mail"
	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/policy/engine"
	"market-auth/backend/internal/security"
	"market-auth/backend/internal/server/interceptors"
	sessionservice "market-auth/backend/internal/session/service"
	singleuserepo "market-auth/backend/internal/singleuse/repository"
	singleuseservice "market-auth/backend/internal/singleuse/service"
	userrepo "market-auth/backend/internal/user/repository"
)

const (
	testEmail    = "ann@example.com"
	testPassword = "Secret1!"
)

type httpEnv struct {
	router *mux.Router
	outbox *mail.Outbox
}

func newHTTPEnv(t *testing.T, policy engine.Evaluator) *httpEnv {
	t.Helper()
	users := userrepo.NewMemoryRepository()
	hasher := security.NewHasher(bcrypt.MinCost)
	store := singleuseservice.NewStore(singleuserepo.NewMemoryRepository(), hasher, 24*time.Hour, time.Hour)
	issuer := sessionservice.NewIssuer(security.NewTestTokenProvider(), users, nil)
	outbox := mail.NewOutbox(mail.Senders{Verification: "verification@myapp.com", Security: "security@myapp.com"}, nil)
	svc := service.NewAuthService(users, store, issuer, hasher, outbox, service.Config{
		VerificationLink:  "http://localhost:8000/verify.html",
		PasswordResetLink: "http://localhost:8000/reset-pass.html",
	}, nil)

	r := mux.NewRouter()
	NewAuthHandler(svc, issuer, users, policy).Register(r, nil)
	return &httpEnv{router: r, outbox: outbox}
}

func (e *httpEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

var hrefPattern = regexp.MustCompile(`href="([^"]+)"`)

func (e *httpEnv) link(t *testing.T, kind mail.Kind) map[string]string {
	t.Helper()
	msg, ok := e.outbox.Last(kind, testEmail)
	require.True(t, ok, "no %s mail", kind)
	m := hrefPattern.FindStringSubmatch(msg.HTML)
	require.NotNil(t, m)
	u, err := url.Parse(m[1])
	require.NoError(t, err)
	return map[string]string{"id": u.Query().Get("id"), "token": u.Query().Get("token")}
}

type signInBody struct {
	Profile struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
	} `json:"profile"`
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

func (e *httpEnv) signUpAndIn(t *testing.T) signInBody {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{"name": "Ann", "email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out signInBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) interceptors.ErrorBody {
	t.Helper()
	var body interceptors.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestSignUp_Responses(t *testing.T) {
	env := newHTTPEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{"name": "Ann", "email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		User struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			Verified bool   `json:"verified"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.User.ID)
	assert.Equal(t, testEmail, created.User.Email)
	assert.False(t, created.User.Verified)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{"name": "Ann", "email": testEmail, "password": testPassword})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.MsgEmailInUse, decodeError(t, rec).Message)

	rec = env.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{"email": "b@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperror.KindValidation, body.Code)
	assert.Equal(t, "Name is missing", body.Message)
}

func TestMalformedBody(t *testing.T) {
	env := newHTTPEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, MsgInvalidBody, decodeError(t, rec).Message)
}

func TestVerifyEmailFlow(t *testing.T) {
	env := newHTTPEnv(t, nil)
	signed := env.signUpAndIn(t)
	assert.False(t, signed.Profile.Verified)

	params := env.link(t, mail.KindVerification)
	rec := env.do(t, http.MethodPost, "/auth/verify", "", params)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MsgEmailVerified)

	rec = env.do(t, http.MethodPost, "/auth/verify", "", params)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.MsgInvalidToken, decodeError(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/auth/profile", signed.Tokens.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verified":true`)
}

func TestResendVerification_RequiresBearer(t *testing.T) {
	env := newHTTPEnv(t, nil)
	signed := env.signUpAndIn(t)

	rec := env.do(t, http.MethodGet, "/auth/verify-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, interceptors.MsgUnauthorized, decodeError(t, rec).Message)

	before := len(env.outbox.Messages(mail.KindVerification))
	rec = env.do(t, http.MethodGet, "/auth/verify-token", signed.Tokens.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MsgCheckInbox)
	assert.Len(t, env.outbox.Messages(mail.KindVerification), before+1)
}

func TestRefreshAndSignOut(t *testing.T) {
	env := newHTTPEnv(t, nil)
	signed := env.signUpAndIn(t)

	rec := env.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": signed.Tokens.Refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated struct {
		Tokens struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		} `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rotated))
	require.NotEmpty(t, rotated.Tokens.Refresh)
	assert.NotEqual(t, signed.Tokens.Refresh, rotated.Tokens.Refresh)

	rec = env.do(t, http.MethodPost, "/auth/sign-out", rotated.Tokens.Access, map[string]string{"refreshToken": rotated.Tokens.Refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MsgSignedOut)

	rec = env.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": rotated.Tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/sign-out", rotated.Tokens.Access, map[string]string{"refreshToken": rotated.Tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.MsgSignOutUnknown, decodeError(t, rec).Message)
}

func TestRefresh_ReuseRevokesAll(t *testing.T) {
	env := newHTTPEnv(t, nil)
	signed := env.signUpAndIn(t)

	rec := env.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": signed.Tokens.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated struct {
		Tokens struct {
			Refresh string `json:"refresh"`
		} `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rotated))

	rec = env.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": signed.Tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": rotated.Tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "replay must revoke the rotated token too")
}

func TestPasswordResetFlow(t *testing.T) {
	env := newHTTPEnv(t, nil)
	env.signUpAndIn(t)

	rec := env.do(t, http.MethodPost, "/auth/forget-pass", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/forget-pass", "", map[string]string{"email": testEmail})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	params := env.link(t, mail.KindReset)

	rec = env.do(t, http.MethodPost, "/auth/verify-pass-reset-token", "", params)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/verify-pass-reset-token", "", map[string]string{"id": params["id"], "token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/reset-pass", "", map[string]string{"id": params["id"], "token": params["token"], "password": testPassword})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, service.MsgSamePassword, decodeError(t, rec).Message)

	rec = env.do(t, http.MethodPost, "/auth/reset-pass", "", map[string]string{"id": params["id"], "token": params["token"], "password": "N3wSecret!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MsgPasswordUpdate)
	_, noticed := env.outbox.Last(mail.KindPasswordChanged, testEmail)
	assert.True(t, noticed)

	rec = env.do(t, http.MethodPost, "/auth/reset-pass", "", map[string]string{"id": params["id"], "token": params["token"], "password": "Another1!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset token must be single-use")

	rec = env.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"email": testEmail, "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"email": testEmail, "password": "N3wSecret!"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignIn_Mismatch(t *testing.T) {
	env := newHTTPEnv(t, nil)
	env.signUpAndIn(t)

	for _, body := range []map[string]string{
		{"email": testEmail, "password": "Wrong1!x"},
		{"email": "ghost@example.com", "password": testPassword},
	} {
		rec := env.do(t, http.MethodPost, "/auth/sign-in", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, service.MsgCredentialMismatch, decodeError(t, rec).Message)
	}
}

func TestProfile_VerifiedOnlyPolicy(t *testing.T) {
	policy, err := engine.NewOPAEvaluator(context.Background(), []string{RouteProfile}, "")
	require.NoError(t, err)
	env := newHTTPEnv(t, policy)
	signed := env.signUpAndIn(t)

	rec := env.do(t, http.MethodGet, "/auth/profile", signed.Tokens.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, interceptors.MsgVerifyFirst, decodeError(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/auth/verify-token", signed.Tokens.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "resend stays open to unverified accounts")

	rec = env.do(t, http.MethodPost, "/auth/verify", "", env.link(t, mail.KindVerification))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/profile", signed.Tokens.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newHTTPEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/auth/sign-in", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
