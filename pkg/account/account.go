// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package account

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/openshelf/loansync/pkg/bookdb"
)

type (

	// Authentication describes the mechanism a provider authenticates
	// with. A provider without one does not support syncing.
	Authentication struct {
		Type string `json:"type" yaml:"type" validate:"required"`
	}

	// Provider describes one lending service.
	Provider struct {
		ID             string          `json:"id" yaml:"id" validate:"required"`
		Name           string          `json:"name" yaml:"name"`
		LoansURI       string          `json:"loans_uri" yaml:"loans_uri" validate:"omitempty,url"`
		Authentication *Authentication `json:"authentication,omitempty" yaml:"authentication"`
	}

	// Persister durably records login state transitions. Implemented by
	// the account store.
	Persister interface {
		SaveLoginState(accountID uuid.UUID, state LoginState) error
	}

	// Account owns one provider session: its login state and the book
	// database holding its loans. Transitions through SetLoginState are
	// the only way credentials are created, replaced or erased.
	Account struct {
		id        uuid.UUID
		provider  Provider
		database  *bookdb.Database
		persister Persister

		mu    sync.Mutex
		state LoginState
	}
)

// Validate checks required provider fields.
func (p *Provider) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// NewAccount creates an account in the logged-out state. The persister may
// be nil, in which case state transitions are memory only.
func NewAccount(id uuid.UUID, provider Provider, database *bookdb.Database, persister Persister) *Account {
	return &Account{
		id:        id,
		provider:  provider,
		database:  database,
		persister: persister,
		state:     LoggedOut{},
	}
}

// ID returns the account identifier.
func (a *Account) ID() uuid.UUID {
	return a.id
}

// Provider returns the lending service this account belongs to.
func (a *Account) Provider() Provider {
	return a.provider
}

// Database returns the book database holding this account's loans.
func (a *Account) Database() *bookdb.Database {
	return a.database
}

// LoginState returns the current session state.
func (a *Account) LoginState() LoginState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetLoginState transitions the session state and persists the transition.
// A persistence failure is logged; the in-memory transition stands, since
// the state machine, not the store, is authoritative during a session.
func (a *Account) SetLoginState(state LoginState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	log.Debugf("account %s login state is now %T", a.id, state)

	if a.persister != nil {
		if err := a.persister.SaveLoginState(a.id, state); err != nil {
			log.Errorf("account %s: failed to persist login state: %v", a.id, err)
		}
	}
}

// RestoreLoginState installs a state loaded from storage without writing it
// back. Used at startup.
func (a *Account) RestoreLoginState(state LoginState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}
