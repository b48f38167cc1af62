// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	suiteCtx    context.Context
	suiteCancel context.CancelFunc
	container   *postgres.PostgresContainer
	databaseURL string
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var _ = BeforeSuite(func() {
	suiteCtx, suiteCancel = context.WithCancel(context.Background())

	var err error
	container, err = postgres.Run(suiteCtx,
		"postgres:18-alpine",
		postgres.WithDatabase("wanderdesk_store"),
		postgres.WithUsername("wanderdesk"),
		postgres.WithPassword("wanderdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	Expect(err).NotTo(HaveOccurred())

	databaseURL, err = container.ConnectionString(suiteCtx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
	if suiteCancel != nil {
		suiteCancel()
	}
})
