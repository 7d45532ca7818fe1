package interceptors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-auth/backend/internal/policy/engine"
	userdomain "market-auth/backend/internal/user/domain"
)

type stubPolicy struct {
	allow bool
	err   error
	got   engine.AccessRequest
}

func (s *stubPolicy) Allow(_ context.Context, req engine.AccessRequest) (bool, error) {
	s.got = req
	return s.allow, s.err
}

func TestRequireAccess(t *testing.T) {
	testCases := []struct {
		name       string
		policy     *stubPolicy
		withUser   bool
		wantStatus int
	}{
		{"allowed", &stubPolicy{allow: true}, true, http.StatusNoContent},
		{"denied", &stubPolicy{allow: false}, true, http.StatusForbidden},
		{"policy error", &stubPolicy{err: errors.New("eval failed")}, true, http.StatusInternalServerError},
		{"no identity", &stubPolicy{allow: true}, false, http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			if tc.withUser {
				req = req.WithContext(WithIdentity(req.Context(), userdomain.Profile{ID: "u1"}))
			}
			rec := httptest.NewRecorder()
			RequireAccess(tc.policy, "profile")(okHandler).ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.withUser && tc.policy.got.Route != "profile" {
				t.Errorf("route = %q, want profile", tc.policy.got.Route)
			}
		})
	}
}

func TestRequireAccess_DeniedMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req = req.WithContext(WithIdentity(req.Context(), userdomain.Profile{ID: "u1"}))
	rec := httptest.NewRecorder()
	RequireAccess(&stubPolicy{}, "profile")(okHandler).ServeHTTP(rec, req)
	if body := decodeError(t, rec); body.Message != MsgVerifyFirst {
		t.Errorf("message = %q, want %q", body.Message, MsgVerifyFirst)
	}
}

func TestRequireAccess_NilPolicy(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAccess(nil, "profile")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
