// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/auth/authtest"
	"github.com/wanderdesk/wanderdesk/internal/auth/postgres"
)

var _ = Describe("Service on PostgreSQL", func() {
	var (
		ctx      context.Context
		accounts *postgres.AccountRepository
		events   *postgres.AuditRepository
		notifier *authtest.RecordingNotifier
		clock    *authtest.FakeClock
		svc      *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx, env.pool)

		accounts = postgres.NewAccountRepository(env.pool)
		events = postgres.NewAuditRepository(env.pool)
		notifier = &authtest.RecordingNotifier{}
		clock = authtest.NewFakeClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))

		var err error
		svc, err = auth.NewService(accounts,
			auth.WithClock(clock),
			auth.WithNotifier(notifier),
			auth.WithAuditSink(events),
			auth.WithHasher(auth.NewArgon2idHasherWithParams(auth.Argon2Params{
				Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32,
			})),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(email string, role auth.Role) *auth.Account {
		acct, err := svc.Register(ctx, auth.Registration{
			Email:    email,
			Name:     "Test Person",
			Phone:    "+351912345678",
			Password: "correct-horse-battery",
			Role:     role,
		})
		Expect(err).NotTo(HaveOccurred())
		return acct
	}

	Describe("registration", func() {
		It("persists the account and rejects a second registration", func() {
			acct := register("Agent@Example.com", auth.RoleAgent)
			Expect(acct.Email).To(Equal("agent@example.com"))

			stored, err := accounts.FindByEmail(ctx, "AGENT@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(acct.ID))
			Expect(stored.Role).To(Equal(auth.RoleAgent))
			Expect(stored.PasswordHash).To(HavePrefix("$argon2id$"))

			_, err = svc.Register(ctx, auth.Registration{
				Email: "agent@example.com", Name: "Other", Password: "another-long-pass", Role: auth.RoleTourist,
			})
			Expect(err).To(MatchError(auth.ErrEmailTaken))
			Expect(notifier.Notices()).To(HaveLen(1))
		})
	})

	Describe("login lifecycle", func() {
		It("authenticates, validates and logs out", func() {
			register("tourist@example.com", auth.RoleTourist)

			res, err := svc.Authenticate(ctx, "tourist@example.com", "correct-horse-battery")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.ValidateSession(ctx, "tourist@example.com", res.Session.Token).Success).To(BeTrue())

			svc.Logout(ctx, "tourist@example.com")
			Expect(svc.IsAuthenticated("tourist@example.com")).To(BeFalse())

			recent, err := events.Recent(ctx, "tourist@example.com", 10)
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(recent))
			for _, ev := range recent {
				names = append(names, ev.Name)
			}
			Expect(names).To(ContainElements(auth.EventAccountRegistered, auth.EventLoginSucceeded, auth.EventLogout))
		})

		It("locks after repeated failures and records the lock", func() {
			register("target@example.com", auth.RoleTourist)

			for range auth.DefaultMaxAttempts {
				_, err := svc.Authenticate(ctx, "target@example.com", "wrong-password")
				Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			}
			_, err := svc.Authenticate(ctx, "target@example.com", "correct-horse-battery")
			Expect(err).To(MatchError(auth.ErrAccountLocked))

			locked, err := events.Recent(ctx, "target@example.com", 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(ContainElement(HaveField("Name", auth.EventAccountLocked)))

			clock.Advance(auth.DefaultLockoutDuration)
			_, err = svc.Authenticate(ctx, "target@example.com", "correct-horse-battery")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("password reset", func() {
		It("replaces the stored hash and revokes the session", func() {
			register("reset@example.com", auth.RoleAgent)
			_, err := svc.Authenticate(ctx, "reset@example.com", "correct-horse-battery")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.RequestPasswordReset(ctx, "reset@example.com")).To(Equal(auth.ResetRequestMessage))
			token, ok := notifier.LastResetToken("reset@example.com")
			Expect(ok).To(BeTrue())

			Expect(svc.ResetPassword(ctx, "reset@example.com", token, "a-brand-new-secret")).To(Succeed())
			Expect(svc.IsAuthenticated("reset@example.com")).To(BeFalse())

			_, err = svc.Authenticate(ctx, "reset@example.com", "correct-horse-battery")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			_, err = svc.Authenticate(ctx, "reset@example.com", "a-brand-new-secret")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("administration", func() {
		It("blocks accounts in the database and reports statistics", func() {
			register("admin@example.com", auth.RoleAdmin)
			register("blocked@example.com", auth.RoleTourist)

			Expect(svc.BlockAccount(ctx, "blocked@example.com", "chargeback")).To(Succeed())
			stored, err := accounts.FindByEmail(ctx, "blocked@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Active).To(BeFalse())

			_, err = svc.Authenticate(ctx, "blocked@example.com", "correct-horse-battery")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))

			_, err = svc.Authenticate(ctx, "admin@example.com", "correct-horse-battery")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Authorize(ctx, "admin@example.com", auth.RoleAdmin)).To(BeTrue())
			Expect(svc.Authorize(ctx, "admin@example.com", auth.RoleAgent)).To(BeFalse())

			stats, err := svc.SecurityStatistics(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalUsers).To(Equal(2))
			Expect(stats.ActiveUsers).To(Equal(1))
			Expect(stats.ActiveSessions).To(Equal(1))
		})
	})
})
