// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

// fallbackDummyHash is verified against when an account does not exist and
// the configured hasher could not produce a dummy of its own.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const fallbackDummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service is the authentication API: login, session checks, password
// management, authorization and account administration. Construct one per
// process with NewService and share it; it is safe for concurrent use.
type Service struct {
	users     UserStore
	attempts  *LoginAttemptTracker
	sessions  *SessionRegistry
	resets    *PasswordResetTokenStore
	hasher    PasswordHasher
	validator InputValidator
	policy    PasswordPolicy
	notifier  Notifier
	audit     AuditSink
	recorder  Recorder
	clock     Clock
	tokens    TokenGenerator
	logger    *slog.Logger
	dummyHash string
}

type serviceOptions struct {
	clock     Clock
	tokens    TokenGenerator
	hasher    PasswordHasher
	validator InputValidator
	notifier  Notifier
	audit     AuditSink
	recorder  Recorder
	logger    *slog.Logger
	lockout   LockoutConfig
	session   SessionConfig
	reset     ResetConfig
	policy    PasswordPolicy
	errs      []error
}

// Option customizes a Service.
type Option func(*serviceOptions)

func requireOption(o *serviceOptions, ok bool, name string) bool {
	if !ok {
		o.errs = append(o.errs, oops.Code("AUTH_INVALID_OPTION").With("option", name).Errorf("%s cannot be nil", name))
	}
	return ok
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(o *serviceOptions) {
		if requireOption(o, c != nil, "clock") {
			o.clock = c
		}
	}
}

// WithTokenGenerator sets the token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *serviceOptions) {
		if requireOption(o, g != nil, "token generator") {
			o.tokens = g
		}
	}
}

// WithHasher sets the password hasher.
func WithHasher(h PasswordHasher) Option {
	return func(o *serviceOptions) {
		if requireOption(o, h != nil, "password hasher") {
			o.hasher = h
		}
	}
}

// WithValidator sets the input validator.
func WithValidator(v InputValidator) Option {
	return func(o *serviceOptions) {
		if requireOption(o, v != nil, "input validator") {
			o.validator = v
		}
	}
}

// WithNotifier sets the notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(o *serviceOptions) {
		if requireOption(o, n != nil, "notifier") {
			o.notifier = n
		}
	}
}

// WithAuditSink sets the audit collaborator.
func WithAuditSink(a AuditSink) Option {
	return func(o *serviceOptions) {
		if requireOption(o, a != nil, "audit sink") {
			o.audit = a
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *serviceOptions) {
		if requireOption(o, r != nil, "recorder") {
			o.recorder = r
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) {
		if requireOption(o, l != nil, "logger") {
			o.logger = l
		}
	}
}

// WithLockoutConfig sets the lockout policy.
func WithLockoutConfig(c LockoutConfig) Option {
	return func(o *serviceOptions) { o.lockout = c }
}

// WithSessionConfig sets the session policy.
func WithSessionConfig(c SessionConfig) Option {
	return func(o *serviceOptions) { o.session = c }
}

// WithResetConfig sets the reset token policy.
func WithResetConfig(c ResetConfig) Option {
	return func(o *serviceOptions) { o.reset = c }
}

// WithPasswordPolicy sets the rules new passwords must satisfy.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(o *serviceOptions) { o.policy = p }
}

// NewService creates a Service backed by users.
func NewService(users UserStore, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_OPTION").Errorf("user store is required")
	}

	o := &serviceOptions{
		clock:     SystemClock{},
		tokens:    NewRandomTokenGenerator(),
		validator: NewOzzoValidator(),
		notifier:  nopNotifier{},
		audit:     nopAudit{},
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		lockout:   DefaultLockoutConfig(),
		session:   DefaultSessionConfig(),
		reset:     DefaultResetConfig(),
		policy:    DefaultPasswordPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.errs) > 0 {
		return nil, errors.Join(o.errs...)
	}
	if o.hasher == nil {
		o.hasher = NewArgon2idHasher()
	}

	s := &Service{
		users:     users,
		attempts:  NewLoginAttemptTracker(o.lockout, o.clock),
		sessions:  NewSessionRegistry(o.session, o.clock, o.tokens),
		resets:    NewPasswordResetTokenStore(o.reset, o.clock, o.tokens),
		hasher:    o.hasher,
		validator: o.validator,
		policy:    o.policy,
		notifier:  o.notifier,
		audit:     o.audit,
		recorder:  o.recorder,
		clock:     o.clock,
		tokens:    o.tokens,
		logger:    o.logger.With("component", "auth"),
		dummyHash: fallbackDummyHash,
	}

	// Verifying unknown accounts against a hash with the live cost parameters
	// keeps their response time indistinguishable from real ones.
	if seed, err := randomHex(16, "AUTH_DUMMY_HASH_FAILED"); err == nil {
		if h, err := o.hasher.Hash(seed); err == nil {
			s.dummyHash = h
		}
	}

	return s, nil
}

// Attempts exposes the lockout tracker.
func (s *Service) Attempts() *LoginAttemptTracker { return s.attempts }

// Sessions exposes the session registry.
func (s *Service) Sessions() *SessionRegistry { return s.sessions }

// Resets exposes the reset token store.
func (s *Service) Resets() *PasswordResetTokenStore { return s.resets }

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Account *Account
	Session *Session
}

// AuthenticationResult is the outcome of validating a session token.
type AuthenticationResult struct {
	Success bool
	Account *Account
	Message string
}

// Authenticate verifies email and password and, on success, issues a new
// session that replaces any previous one. Unknown email, wrong password and
// blocked account all fail with ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	corr := s.tokens.CorrelationID()
	logger := s.logger.With("correlation_id", corr)

	key := NormalizeEmail(email)
	if err := s.validator.ValidateEmail(key); err != nil {
		s.recorder.LoginAttempt(ResultInvalidInput)
		return nil, invalidInput("email", err)
	}
	if err := s.validator.ValidatePassword(password); err != nil {
		s.recorder.LoginAttempt(ResultInvalidInput)
		return nil, invalidInput("password", err)
	}

	if s.attempts.IsLocked(key) {
		return nil, s.loginLocked(ctx, logger, key, corr)
	}

	account, lookupErr := s.users.FindByEmail(ctx, key)
	target := s.dummyHash
	exists := false
	switch {
	case lookupErr == nil:
		target = account.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
	default:
		s.recorder.LoginAttempt(ResultError)
		errutil.LogError(logger, "account lookup failed", lookupErr)
		return nil, internalError("find account", lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, target)
	if verifyErr != nil {
		if exists {
			errutil.LogError(logger, "stored password hash is unreadable", verifyErr)
		}
		valid = false
	}

	switch {
	case !exists:
		return nil, s.loginFailed(ctx, logger, key, corr, "unknown_account")
	case !valid:
		return nil, s.loginFailed(ctx, logger, key, corr, "wrong_password")
	case !account.Active:
		return nil, s.loginFailed(ctx, logger, key, corr, "inactive_account")
	}

	// A concurrent burst of failures may have locked the account while the
	// password was being verified.
	if !s.attempts.RecordSuccessUnlessLocked(key) {
		return nil, s.loginLocked(ctx, logger, key, corr)
	}

	session, err := s.sessions.Issue(key)
	if err != nil {
		s.recorder.LoginAttempt(ResultError)
		errutil.LogError(logger, "session issue failed", err)
		return nil, internalError("issue session", err)
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, logger, account, password)
	}

	s.recorder.LoginAttempt(ResultSuccess)
	s.recordEvent(ctx, EventLoginSucceeded, key, corr, map[string]string{
		"session_id": session.ID.String(),
	})
	logger.InfoContext(ctx, "login succeeded", "account", key, "session_id", session.ID.String())

	return &LoginResult{Account: account, Session: session}, nil
}

// loginLocked audits a login refused because key is locked and returns the
// lockout error.
func (s *Service) loginLocked(ctx context.Context, logger *slog.Logger, key, corr string) error {
	remaining := s.attempts.RemainingLockoutSeconds(key)
	s.recorder.LoginAttempt(ResultLocked)
	s.recordEvent(ctx, EventLoginRejectedLocked, key, corr, map[string]string{
		"retry_after_seconds": strconv.Itoa(remaining),
	})
	logger.WarnContext(ctx, "login rejected for locked account", "account", key, "retry_after_seconds", remaining)
	return accountLocked(remaining)
}

// loginFailed counts the failure, audits it and returns the uniform
// credentials error. reason stays server side.
func (s *Service) loginFailed(ctx context.Context, logger *slog.Logger, key, corr, reason string) error {
	outcome := s.countFailure(ctx, logger, key, corr)
	s.recorder.LoginAttempt(ResultFailure)
	s.recordEvent(ctx, EventLoginFailed, key, corr, map[string]string{
		"reason":             reason,
		"attempts_remaining": strconv.Itoa(outcome.AttemptsRemaining),
	})
	logger.InfoContext(ctx, "login failed",
		"account", key,
		"reason", reason,
		"attempts_remaining", outcome.AttemptsRemaining,
	)
	return invalidCredentials()
}

// countFailure records a failed credential check against key and audits
// the lock transition when it happens.
func (s *Service) countFailure(ctx context.Context, logger *slog.Logger, key, corr string) LockoutOutcome {
	outcome := s.attempts.RecordFailure(key)
	if outcome.Transitioned {
		s.recorder.AccountLocked()
		s.recordEvent(ctx, EventAccountLocked, key, corr, map[string]string{
			"locked_until": outcome.LockedUntil.UTC().Format(time.RFC3339),
		})
		logger.WarnContext(ctx, "account locked after repeated failures",
			"account", key,
			"locked_until", outcome.LockedUntil,
		)
	}
	return outcome
}

// upgradeHash rehashes a verified password with current parameters. Failure
// does not affect the login.
func (s *Service) upgradeHash(ctx context.Context, logger *slog.Logger, account *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(logger, "password rehash failed", err)
		return
	}
	updated := *account
	updated.PasswordHash = newHash
	updated.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, &updated); err != nil {
		errutil.LogError(logger, "password rehash not persisted", err)
		return
	}
	*account = updated
}

// ValidateSession checks token against email's live session and that the
// account is still active.
func (s *Service) ValidateSession(ctx context.Context, email, token string) AuthenticationResult {
	account, err := s.validateSession(ctx, email, token)
	if err != nil {
		return AuthenticationResult{Message: PublicMessage(err)}
	}
	return AuthenticationResult{Success: true, Account: account, Message: "authenticated"}
}

// AuthenticateWithToken returns the account owning a live session token.
func (s *Service) AuthenticateWithToken(ctx context.Context, email, token string) (*Account, error) {
	return s.validateSession(ctx, email, token)
}

func (s *Service) validateSession(ctx context.Context, email, token string) (*Account, error) {
	key := NormalizeEmail(email)
	if key == "" || token == "" {
		return nil, invalidToken()
	}
	if !s.sessions.Validate(key, token) {
		return nil, invalidToken()
	}

	account, err := s.users.FindByEmail(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "account lookup failed during session validation", err)
			return nil, internalError("find account", err)
		}
		s.sessions.Revoke(key)
		return nil, invalidToken()
	}
	if !account.Active {
		s.sessions.Revoke(key)
		return nil, invalidToken()
	}
	return account, nil
}

// Logout ends email's session. It is a no-op when none exists.
func (s *Service) Logout(ctx context.Context, email string) {
	key := NormalizeEmail(email)
	if !s.sessions.Revoke(key) {
		return
	}
	s.recorder.SessionRevoked(RevokeLogout)
	s.recordEvent(ctx, EventLogout, key, s.tokens.CorrelationID(), nil)
	s.logger.InfoContext(ctx, "logged out", "account", key)
}

// IsAuthenticated reports whether email currently has a live session.
func (s *Service) IsAuthenticated(email string) bool {
	return s.sessions.IsActive(NormalizeEmail(email))
}

// revokeFor ends key's session because of reason and reports it.
func (s *Service) revokeFor(key, reason string) {
	if s.sessions.Revoke(key) {
		s.recorder.SessionRevoked(reason)
	}
}

func (s *Service) recordEvent(ctx context.Context, name, key, corr string, details map[string]string) {
	event := AuditEvent{
		Name:          name,
		AccountKey:    key,
		CorrelationID: corr,
		Details:       details,
		At:            s.clock.Now(),
	}
	if err := s.audit.RecordEvent(ctx, event); err != nil {
		errutil.LogError(s.logger.With("event", name), "audit sink failed", err)
	}
}
