package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when an otherwise valid access token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenUse distinguishes access tokens from refresh tokens signed with the same key.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// Claims holds the JWT claims shared by access and refresh tokens. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Use TokenUse `json:"typ"`
}

// TokenProvider issues and validates JWT access and refresh tokens. It signs with an HMAC
// secret (HS256) or with a private key (RS256 / ES256).
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	audience  string
	accessTTL time.Duration
	nowF      func() time.Time
}

// NewHMACTokenProvider returns a TokenProvider that signs with secret using HS256.
func NewHMACTokenProvider(secret []byte, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		nowF:      time.Now,
	}, nil
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256)
// and validates with publicKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		nowF:      time.Now,
	}, nil
}

// SetClock replaces the time source used for iat/exp and for expiry checks.
func (p *TokenProvider) SetClock(now func() time.Time) {
	if now != nil {
		p.nowF = now
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT for userID. Returns the token and its expiration time.
func (p *TokenProvider) IssueAccess(userID string) (token string, expiresAt time.Time, err error) {
	now := p.nowF().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Use: TokenUseAccess,
	}
	token, err = p.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueRefresh issues a refresh JWT for userID. Refresh tokens carry no exp claim; their
// lifetime ends when they are removed from the owner's stored set. The jti makes every
// issued refresh token distinct.
func (p *TokenProvider) IssueRefresh(userID string) (token, jti string, err error) {
	now := p.nowF().UTC()
	jti = uuid.NewString()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			Subject:  userID,
			Issuer:   p.issuer,
			Audience: jwt.ClaimStrings{p.audience},
			IssuedAt: jwt.NewNumericDate(now),
		},
		Use: TokenUseRefresh,
	}
	token, err = p.sign(claims)
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(p.method, claims)
	return t.SignedString(p.signKey)
}

// ValidateAccess parses and validates an access token (signature, exp, iss, aud, typ).
// Returns the user id, ErrTokenExpired when the token is past exp, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (userID string, err error) {
	claims, err := p.parse(tokenString, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Use != TokenUseAccess {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ValidateRefresh parses and validates a refresh token (signature, iss, aud, typ).
// Returns the user id and jti, or ErrInvalidToken. Membership in the owner's set is
// checked by the caller.
func (p *TokenProvider) ValidateRefresh(tokenString string) (userID, jti string, err error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	if claims.Use != TokenUseRefresh || claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}

func (p *TokenProvider) parse(tokenString string, extra ...jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithTimeFunc(p.nowF),
	}, extra...)
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
