package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-auth/backend/internal/audit"
	identitydomain "market-auth/backend/internal/identity/domain"
	"market-auth/backend/internal/mail"
	"market-auth/backend/internal/platform/apperror"
	"market-auth/backend/internal/security"
	sessiondomain "market-auth/backend/internal/session/domain"
	sessionservice "market-auth/backend/internal/session/service"
	singleusedomain "market-auth/backend/internal/singleuse/domain"
	"market-auth/backend/internal/telemetry"
	telemetrydomain "market-auth/backend/internal/telemetry/domain"
	userdomain "market-auth/backend/internal/user/domain"
	userrepo "market-auth/backend/internal/user/repository"
)

// Client-facing messages. Sign-in failures always use MsgCredentialMismatch so the caller cannot tell
// an unknown email from a wrong password.
const (
	MsgEmailInUse         = "Unauthorized request, email is already in use!"
	MsgCredentialMismatch = "Email/Password mismatch!"
	MsgUnauthorized       = "Unauthorized access!"
	MsgSessionExpired     = "Session expired!"
	MsgInvalidToken       = "Unauthorized request, invalid token!"
	MsgAccountNotFound    = "Account not found!"
	MsgSamePassword       = "The new password must be different!"
	MsgSignOutUnknown     = "Unauthorized request, session not found!"
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdateFields(ctx context.Context, id string, patch userdomain.Patch) (bool, error)
}

// TokenStore issues, checks and consumes single-use verification and reset tokens.
type TokenStore interface {
	Issue(ctx context.Context, ownerID string, purpose singleusedomain.Purpose) (string, error)
	Verify(ctx context.Context, ownerID string, purpose singleusedomain.Purpose, raw string) (bool, error)
	Consume(ctx context.Context, ownerID string, purpose singleusedomain.Purpose, raw string) (bool, error)
}

// SessionIssuer mints, rotates and revokes access/refresh token pairs.
type SessionIssuer interface {
	IssuePair(ctx context.Context, userID string) (*sessiondomain.TokenPair, error)
	RotateRefreshToken(ctx context.Context, old string) (*sessiondomain.TokenPair, error)
	Revoke(ctx context.Context, userID, token string) error
}

// Config holds the link bases embedded in verification and reset mail.
type Config struct {
	VerificationLink  string
	PasswordResetLink string
}

// SignInResult is returned by SignIn.
type SignInResult struct {
	Profile userdomain.Profile       `json:"profile"`
	Tokens  *sessiondomain.TokenPair `json:"tokens"`
}

// AuthService orchestrates the credential flows: sign-up, email verification, sign-in, refresh,
// sign-out and password reset. It holds no per-user state; the stores are the source of truth.
type AuthService struct {
	users    UserRepo
	tokens   TokenStore
	sessions SessionIssuer
	hasher   *security.Hasher
	mailer   mail.Sender
	cfg      Config
	logger   *slog.Logger
	nowF     func() time.Time

	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	clientIP audit.IPExtractor

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	users UserRepo,
	tokens TokenStore,
	sessions SessionIssuer,
	hasher *security.Hasher,
	mailer mail.Sender,
	cfg Config,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
		nowF:     time.Now,
	}
}

// SetEventSinks wires the audit trail, the event emitter and the client IP source. Any may be nil.
func (s *AuthService) SetEventSinks(a audit.AuditLogger, e telemetry.EventEmitter, clientIP audit.IPExtractor) {
	s.audit = a
	s.events = e
	s.clientIP = clientIP
}

// SetClock replaces the time source used for new users and events.
func (s *AuthService) SetClock(now func() time.Time) {
	if now != nil {
		s.nowF = now
	}
}

// SignUp validates the request, creates an unverified user and mails a verification link.
// A mail failure surfaces as Internal but the user is kept; the client recovers via ResendVerification.
func (s *AuthService) SignUp(ctx context.Context, req identitydomain.SignUpRequest) (*userdomain.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := userdomain.NormalizeEmail(req.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.Conflict(MsgEmailInUse)
	}
	hash, err := s.hasher.Hash([]byte(req.Password))
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	u, err := userdomain.NewUser(req.Name, email, hash, s.nowF())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, apperror.Conflict(MsgEmailInUse)
		}
		return nil, apperror.Internal(err)
	}
	s.record(ctx, telemetrydomain.EventSignUp, u.ID, nil)

	if err := s.sendVerification(ctx, u); err != nil {
		return nil, err
	}
	profile := u.Profile()
	return &profile, nil
}

// VerifyEmail checks and consumes the emailed verification token in one step, then marks the user
// verified. Of several concurrent calls with the same token, one succeeds.
func (s *AuthService) VerifyEmail(ctx context.Context, req identitydomain.TokenRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ok, err := s.tokens.Consume(ctx, req.ID, singleusedomain.PurposeVerification, req.Token)
	if err != nil {
		return apperror.Internal(err)
	}
	if !ok {
		return apperror.Unauthorized(MsgInvalidToken, nil)
	}
	verified := true
	updated, err := s.users.UpdateFields(ctx, req.ID, userdomain.Patch{Verified: &verified})
	if err != nil {
		return apperror.Internal(err)
	}
	if !updated {
		return apperror.Unauthorized(MsgInvalidToken, nil)
	}
	s.record(ctx, telemetrydomain.EventEmailVerified, req.ID, nil)
	return nil
}

// ResendVerification replaces the user's verification token and mails a fresh link.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperror.Internal(err)
	}
	if u == nil {
		return apperror.Unauthorized(MsgUnauthorized, nil)
	}
	if err := s.sendVerification(ctx, u); err != nil {
		return err
	}
	s.record(ctx, telemetrydomain.EventVerificationResent, u.ID, nil)
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, u *userdomain.User) error {
	raw, err := s.tokens.Issue(ctx, u.ID, singleusedomain.PurposeVerification)
	if err != nil {
		return apperror.Internal(err)
	}
	link, err := buildLink(s.cfg.VerificationLink, u.ID, raw)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.mailer.SendVerificationLink(ctx, u.Email, link); err != nil {
		s.logger.Error("send verification mail failed", "user_id", u.ID, "error", err)
		return apperror.Internal(err)
	}
	return nil
}

// SignIn checks the credentials and issues an access/refresh pair. Unverified accounts may sign in;
// the returned profile carries the flag.
func (s *AuthService) SignIn(ctx context.Context, req identitydomain.SignInRequest) (*SignInResult, error) {
	u, err := s.users.GetByEmail(ctx, userdomain.NormalizeEmail(req.Email))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		// Keep response time close to the wrong-password path.
		s.hasher.Verify([]byte(req.Password), s.dummyPasswordHash())
		s.record(ctx, telemetrydomain.EventSignInFailed, "", nil)
		return nil, apperror.Unauthorized(MsgCredentialMismatch, nil)
	}
	if req.Password == "" || !s.hasher.Verify([]byte(req.Password), u.PasswordHash) {
		s.record(ctx, telemetrydomain.EventSignInFailed, u.ID, nil)
		return nil, apperror.Unauthorized(MsgCredentialMismatch, nil)
	}
	pair, err := s.sessions.IssuePair(ctx, u.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.record(ctx, telemetrydomain.EventSignIn, u.ID, map[string]any{"verified": u.Verified})
	return &SignInResult{Profile: u.Profile(), Tokens: pair}, nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash([]byte(uuid.NewString()))
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Refresh rotates the refresh token. Every rejection (bad signature, reuse, unknown owner) is
// Unauthorized; store failures are Internal.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*sessiondomain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthorized(MsgUnauthorized, nil)
	}
	pair, err := s.sessions.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, sessionservice.ErrInvalidRefreshToken),
			errors.Is(err, sessionservice.ErrRefreshTokenReused),
			errors.Is(err, sessionservice.ErrUnknownUser):
			var userID string
			var rerr *sessionservice.RotationError
			if errors.As(err, &rerr) {
				userID = rerr.UserID
			}
			s.record(ctx, telemetrydomain.EventRefreshRejected, userID, map[string]any{"reason": err.Error()})
			return nil, apperror.Unauthorized(MsgUnauthorized, err)
		default:
			return nil, apperror.Internal(err)
		}
	}
	s.record(ctx, telemetrydomain.EventRefresh, pair.UserID, nil)
	return pair, nil
}

// SignOut revokes refreshToken for the authenticated user.
func (s *AuthService) SignOut(ctx context.Context, userID, refreshToken string) error {
	if err := s.sessions.Revoke(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, sessionservice.ErrNotFound) {
			return apperror.Unauthorized(MsgSignOutUnknown, err)
		}
		return apperror.Internal(err)
	}
	s.record(ctx, telemetrydomain.EventSignOut, userID, nil)
	return nil
}

// ForgotPassword mails a password reset link to the account registered under email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if err := identitydomain.ValidateEmail(email); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, userdomain.NormalizeEmail(email))
	if err != nil {
		return apperror.Internal(err)
	}
	if u == nil {
		return apperror.NotFound(MsgAccountNotFound)
	}
	raw, err := s.tokens.Issue(ctx, u.ID, singleusedomain.PurposeReset)
	if err != nil {
		return apperror.Internal(err)
	}
	link, err := buildLink(s.cfg.PasswordResetLink, u.ID, raw)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.mailer.SendResetLink(ctx, u.Email, link); err != nil {
		s.logger.Error("send reset mail failed", "user_id", u.ID, "error", err)
		return apperror.Internal(err)
	}
	s.record(ctx, telemetrydomain.EventResetRequested, u.ID, nil)
	return nil
}

// ValidateResetToken is the reset guard: it succeeds only while the emailed reset token is live.
// It does not consume the token.
func (s *AuthService) ValidateResetToken(ctx context.Context, req identitydomain.TokenRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ok, err := s.tokens.Verify(ctx, req.ID, singleusedomain.PurposeReset, req.Token)
	if err != nil {
		return apperror.Internal(err)
	}
	if !ok {
		return apperror.Unauthorized(MsgInvalidToken, nil)
	}
	return nil
}

// ResetPassword runs the reset guard, rejects an unchanged password, consumes the reset token, stores
// the new hash and notifies the owner. Only one of several concurrent resets with the same token
// gets past the consume step.
func (s *AuthService) ResetPassword(ctx context.Context, req identitydomain.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.ValidateResetToken(ctx, req.TokenRequest); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, req.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if u == nil {
		return apperror.NotFound(MsgAccountNotFound)
	}
	if s.hasher.Verify([]byte(req.Password), u.PasswordHash) {
		return apperror.Validation(MsgSamePassword)
	}
	hash, err := s.hasher.Hash([]byte(req.Password))
	if err != nil {
		return apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	consumed, err := s.tokens.Consume(ctx, u.ID, singleusedomain.PurposeReset, req.Token)
	if err != nil {
		return apperror.Internal(err)
	}
	if !consumed {
		return apperror.Unauthorized(MsgInvalidToken, nil)
	}
	updated, err := s.users.UpdateFields(ctx, u.ID, userdomain.Patch{PasswordHash: &hash})
	if err != nil {
		return apperror.Internal(err)
	}
	if !updated {
		return apperror.NotFound(MsgAccountNotFound)
	}
	s.record(ctx, telemetrydomain.EventPasswordReset, u.ID, nil)
	if err := s.mailer.SendPasswordChangedNotice(ctx, u.Email); err != nil {
		s.logger.Error("send password changed notice failed", "user_id", u.ID, "error", err)
		return apperror.Internal(err)
	}
	return nil
}

// Profile returns the public profile of userID.
func (s *AuthService) Profile(ctx context.Context, userID string) (*userdomain.Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		return nil, apperror.Unauthorized(MsgUnauthorized, nil)
	}
	p := u.Profile()
	return &p, nil
}

// record writes the audit entry and publishes the event. Both are best-effort.
func (s *AuthService) record(ctx context.Context, t telemetrydomain.EventType, userID string, meta map[string]any) {
	if s.audit == nil && s.events == nil {
		return
	}
	var metadata []byte
	if len(meta) > 0 {
		metadata, _ = json.Marshal(meta)
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, string(t), string(metadata))
	}
	ip := ""
	if s.clientIP != nil {
		ip = s.clientIP(ctx)
	}
	telemetry.EmitAsync(s.events, &telemetrydomain.AuthEvent{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		IP:         ip,
		Metadata:   metadata,
		OccurredAt: s.nowF().UTC(),
	})
}

// buildLink appends id and token query parameters to base.
func buildLink(base, userID, raw string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse link base: %w", err)
	}
	q := u.Query()
	q.Set("id", userID)
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
