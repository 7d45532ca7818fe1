package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSenders = Senders{Verification: "verification@myapp.com", Security: "security@myapp.com"}

func TestNewHTTPSender_Defaults(t *testing.T) {
	s := NewHTTPSender("http://mail", "tok", testSenders)
	require.NotNil(t, s.HTTPClient)
	assert.Equal(t, defaultTimeout, s.HTTPClient.Timeout)
}

func TestHTTPSender_SendVerificationLink(t *testing.T) {
	var got apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer api-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewHTTPSender(server.URL, "api-token", testSenders)
	link := "http://localhost:8000/verify.html?id=u1&token=abc"
	require.NoError(t, s.SendVerificationLink(context.Background(), "ann@x.com", link))

	assert.Equal(t, "verification@myapp.com", got.From.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "ann@x.com", got.To[0].Email)
	assert.Contains(t, got.HTML, `href="`+link+`"`)
	assert.Equal(t, "verification", got.Category)
}

func TestHTTPSender_SecurityMailUsesSecuritySender(t *testing.T) {
	var froms []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		froms = append(froms, req.From.Email)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewHTTPSender(server.URL, "", testSenders)
	ctx := context.Background()
	require.NoError(t, s.SendResetLink(ctx, "ann@x.com", "http://x/reset"))
	require.NoError(t, s.SendPasswordChangedNotice(ctx, "ann@x.com"))
	assert.Equal(t, []string{"security@myapp.com", "security@myapp.com"}, froms)
}

func TestHTTPSender_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	err := NewHTTPSender(server.URL, "", testSenders).SendPasswordChangedNotice(context.Background(), "ann@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")

	err = NewHTTPSender("", "", testSenders).SendPasswordChangedNotice(context.Background(), "ann@x.com")
	require.Error(t, err)

	// The link carries a raw token and must not leak into errors.
	err = NewHTTPSender("http://127.0.0.1:1", "", testSenders).SendResetLink(context.Background(), "ann@x.com", "http://x/reset?token=secret")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret"))
}

func TestHTTPSender_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewHTTPSender(server.URL, "", testSenders).SendVerificationLink(ctx, "ann@x.com", "l"))
}
