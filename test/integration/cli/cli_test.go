// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

//go:build integration

package cli_test

import (
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("wanderdesk CLI", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	Describe("migrate", func() {
		It("applies the schema and reports it", func() {
			out, err := wanderdesk(ctx, "", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", out)
			Expect(out).To(ContainSubstring("Migrations complete"))

			var exists bool
			err = env.pool.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'accounts')",
			).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			out, err = wanderdesk(ctx, "", "migrate", "status", "--format", "json")
			Expect(err).NotTo(HaveOccurred(), "status failed: %s", out)
			Expect(out).To(ContainSubstring(`"name": "000002_security_events"`))
		})

		It("is idempotent", func() {
			for range 2 {
				out, err := wanderdesk(ctx, "", "migrate")
				Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", out)
			}
		})
	})

	Describe("useradd", func() {
		It("registers an account that events can see", func() {
			out, err := wanderdesk(ctx, "correct-horse\n",
				"useradd", "--email", "ana@example.com", "--name", "Ana Lima",
				"--role", "admin", "--password-stdin", "--audit-mode", "all")
			Expect(err).NotTo(HaveOccurred(), "useradd failed: %s", out)
			Expect(out).To(ContainSubstring("Registered ana@example.com as admin"))
			Expect(out).NotTo(ContainSubstring("correct-horse"))

			var role string
			err = env.pool.QueryRow(ctx, "SELECT role FROM accounts WHERE email = $1", "ana@example.com").Scan(&role)
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal("admin"))

			out, err = wanderdesk(ctx, "", "events", "--account", "ana@example.com", "--format", "json", "--log-level", "error")
			Expect(err).NotTo(HaveOccurred(), "events failed: %s", out)
			var events []map[string]any
			Expect(json.Unmarshal([]byte(out[max(strings.IndexByte(out, '['), 0):]), &events)).To(Succeed())
			Expect(events).NotTo(BeEmpty())
			Expect(events[0]["name"]).To(Equal("account_registered"))
		})

		It("rejects a duplicate email", func() {
			args := []string{"useradd", "--email", "bo@example.com", "--name", "Bo", "--password-stdin"}
			out, err := wanderdesk(ctx, "correct-horse\n", args...)
			Expect(err).NotTo(HaveOccurred(), "first useradd failed: %s", out)

			out, err = wanderdesk(ctx, "correct-horse\n", args...)
			Expect(err).To(HaveOccurred())
			Expect(out).To(ContainSubstring("already registered"))
		})
	})
})
