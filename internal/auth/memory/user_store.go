// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package memory provides an in-process auth.UserStore.
package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// UserStore keeps accounts in a map keyed by normalized email. Accounts are
// copied on the way in and out so callers never share memory with the store.
type UserStore struct {
	mu       sync.RWMutex
	accounts map[string]auth.Account
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{accounts: make(map[string]auth.Account)}
}

// FindByEmail returns a copy of the account for email.
func (s *UserStore) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	key := auth.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[key]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", key).Wrap(auth.ErrNotFound)
	}
	return &a, nil
}

// EmailExists reports whether email is registered.
func (s *UserStore) EmailExists(_ context.Context, email string) (bool, error) {
	key := auth.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[key]
	return ok, nil
}

// Add stores a new account.
func (s *UserStore) Add(_ context.Context, account *auth.Account) error {
	if account == nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").Errorf("account cannot be nil")
	}
	key := account.Key()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[key]; ok {
		return oops.Code("ACCOUNT_EMAIL_EXISTS").With("email", key).Wrap(auth.ErrEmailExists)
	}
	stored := *account
	stored.Email = key
	s.accounts[key] = stored
	return nil
}

// Update replaces an existing account.
func (s *UserStore) Update(_ context.Context, account *auth.Account) error {
	if account == nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").Errorf("account cannot be nil")
	}
	key := account.Key()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[key]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("email", key).Wrap(auth.ErrNotFound)
	}
	stored := *account
	stored.Email = key
	s.accounts[key] = stored
	return nil
}

// CountTotal returns the number of accounts.
func (s *UserStore) CountTotal(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// CountActive returns the number of active accounts.
func (s *UserStore) CountActive(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.accounts {
		if a.Active {
			n++
		}
	}
	return n, nil
}

var _ auth.UserStore = (*UserStore)(nil)
