// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package mocks holds testify mocks for auth ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// MockUserStore is a mock implementation of auth.UserStore.
type MockUserStore struct {
	mock.Mock
}

// NewMockUserStore creates a MockUserStore whose expectations are asserted
// when the test ends.
func NewMockUserStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserStore {
	m := &MockUserStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindByEmail provides a mock function.
func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	ret := m.Called(ctx, email)
	var acct *auth.Account
	if v := ret.Get(0); v != nil {
		acct = v.(*auth.Account)
	}
	return acct, ret.Error(1)
}

// EmailExists provides a mock function.
func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	ret := m.Called(ctx, email)
	return ret.Bool(0), ret.Error(1)
}

// Add provides a mock function.
func (m *MockUserStore) Add(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// Update provides a mock function.
func (m *MockUserStore) Update(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// CountTotal provides a mock function.
func (m *MockUserStore) CountTotal(ctx context.Context) (int, error) {
	ret := m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

// CountActive provides a mock function.
func (m *MockUserStore) CountActive(ctx context.Context) (int, error) {
	ret := m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

var _ auth.UserStore = (*MockUserStore)(nil)
