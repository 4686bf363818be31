// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package stor

import (
	"github.com/google/uuid"

	"github.com/openshelf/loansync/pkg/account"
)

// Persister adapts the account store to the account.Persister interface, so
// that login state transitions survive process restarts.
type Persister struct {
	Store Store
}

// SaveLoginState writes the serialized state into the account record.
func (p Persister) SaveLoginState(accountID uuid.UUID, state account.LoginState) error {
	record, err := p.Store.Account().Get(accountID.String())
	if err != nil {
		return err
	}
	data, err := account.MarshalLoginState(state)
	if err != nil {
		return err
	}
	record.LoginState = data
	return p.Store.Account().Update(record)
}

// LoadLoginState restores the state stored in the account record. An account
// that never persisted a state is logged out.
func (p Persister) LoadLoginState(accountID uuid.UUID) (account.LoginState, error) {
	record, err := p.Store.Account().Get(accountID.String())
	if err != nil {
		return nil, err
	}
	if len(record.LoginState) == 0 {
		return account.LoggedOut{}, nil
	}
	return account.UnmarshalLoginState(record.LoginState)
}
