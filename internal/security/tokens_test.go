package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	p := NewTestTokenProvider()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })

	tok, exp, err := p.IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if tok == "" {
		t.Fatal("access token empty")
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("expiresAt = %v, want %v", exp, now.Add(15*time.Minute))
	}
	uid, err := p.ValidateAccess(tok)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if uid != "u1" {
		t.Errorf("userID = %q, want u1", uid)
	}
}

func TestTokenProvider_AccessExpires(t *testing.T) {
	p := NewTestTokenProvider()
	now := time.Now()
	p.SetClock(func() time.Time { return now })

	tok, _, err := p.IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	now = now.Add(14 * time.Minute)
	if _, err := p.ValidateAccess(tok); err != nil {
		t.Fatalf("ValidateAccess before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.ValidateAccess(tok); err != ErrTokenExpired {
		t.Errorf("ValidateAccess after expiry: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_IssueAndValidateRefresh(t *testing.T) {
	p := NewTestTokenProvider()

	tok, jti, err := p.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if tok == "" || jti == "" {
		t.Fatal("refresh token or jti empty")
	}
	uid, gotJTI, err := p.ValidateRefresh(tok)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if uid != "u1" || gotJTI != jti {
		t.Errorf("ValidateRefresh = (%q, %q), want (u1, %q)", uid, gotJTI, jti)
	}

	second, jti2, err := p.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if second == tok || jti2 == jti {
		t.Error("refresh tokens for the same user should be distinct")
	}
}

func TestTokenProvider_RefreshHasNoExpiry(t *testing.T) {
	p := NewTestTokenProvider()
	now := time.Now()
	p.SetClock(func() time.Time { return now })

	tok, _, err := p.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	now = now.Add(365 * 24 * time.Hour)
	if _, _, err := p.ValidateRefresh(tok); err != nil {
		t.Errorf("ValidateRefresh a year later: %v", err)
	}
}

func TestTokenProvider_TokenKindsNotInterchangeable(t *testing.T) {
	p := NewTestTokenProvider()

	access, _, err := p.IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := p.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := p.ValidateAccess(refresh); err != ErrInvalidToken {
		t.Errorf("ValidateAccess(refresh): want ErrInvalidToken, got %v", err)
	}
	if _, _, err := p.ValidateRefresh(access); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh(access): want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_RejectsInvalid(t *testing.T) {
	p := NewTestTokenProvider()
	good, _, err := p.IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	other, err := NewHMACTokenProvider([]byte("another-secret"), TestIssuer, TestAudience, time.Minute)
	if err != nil {
		t.Fatalf("NewHMACTokenProvider: %v", err)
	}
	foreign, _, _ := other.IssueAccess("u1")
	wrongIss, _ := NewHMACTokenProvider([]byte("test-secret-do-not-use"), "someone-else", TestAudience, time.Minute)
	badIssuer, _, _ := wrongIss.IssueAccess("u1")
	wrongAud, _ := NewHMACTokenProvider([]byte("test-secret-do-not-use"), TestIssuer, "other-api", time.Minute)
	badAudience, _, _ := wrongAud.IssueAccess("u1")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    TestIssuer,
			Audience:  jwt.ClaimStrings{TestAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Use: TokenUseAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	testCases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered", good + "x"},
		{"foreign secret", foreign},
		{"wrong issuer", badIssuer},
		{"wrong audience", badAudience},
		{"alg none", unsigned},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.ValidateAccess(tc.token); err != ErrInvalidToken {
				t.Errorf("ValidateAccess: want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestTokenProvider_RSA(t *testing.T) {
	p, err := NewTestRSATokenProvider()
	if err != nil {
		t.Fatalf("NewTestRSATokenProvider: %v", err)
	}
	tok, _, err := p.IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if uid, err := p.ValidateAccess(tok); err != nil || uid != "u1" {
		t.Errorf("ValidateAccess = (%q, %v), want (u1, nil)", uid, err)
	}

	// An HS256 token must not pass an RS256 provider.
	hs := NewTestTokenProvider()
	hsTok, _, _ := hs.IssueAccess("u1")
	if _, err := p.ValidateAccess(hsTok); err != ErrInvalidToken {
		t.Errorf("ValidateAccess(HS256 token): want ErrInvalidToken, got %v", err)
	}
}

func TestNewHMACTokenProvider_EmptySecret(t *testing.T) {
	if _, err := NewHMACTokenProvider(nil, "i", "a", time.Minute); err != ErrInvalidKey {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}
