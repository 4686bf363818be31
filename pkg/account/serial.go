// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package account

import (
	"encoding/json"
	"fmt"
)

// stateSnapshot is the durable form of a login state. The kind tag keeps the
// sum-type shape explicit on disk.
type stateSnapshot struct {
	Kind        string       `json:"kind"`
	Credentials *Credentials `json:"credentials,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// MarshalLoginState serializes a login state for storage.
func MarshalLoginState(s LoginState) ([]byte, error) {
	var snap stateSnapshot
	switch st := s.(type) {
	case LoggedOut:
		snap.Kind = "logged-out"
	case LoggingIn:
		snap.Kind = "logging-in"
	case LoggedIn:
		snap.Kind = "logged-in"
		snap.Credentials = &st.Credentials
	case LoginFailed:
		snap.Kind = "login-failed"
		snap.Message = st.Message
	case LoggingOut:
		snap.Kind = "logging-out"
		snap.Credentials = &st.Credentials
	case LogoutFailed:
		snap.Kind = "logout-failed"
		snap.Credentials = &st.Credentials
		snap.Message = st.Message
	default:
		return nil, fmt.Errorf("unrepresentable login state %T", s)
	}
	return json.Marshal(snap)
}

// UnmarshalLoginState restores a login state from storage.
func UnmarshalLoginState(data []byte) (LoginState, error) {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	switch snap.Kind {
	case "logged-out", "":
		return LoggedOut{}, nil
	case "logging-in":
		return LoggingIn{}, nil
	case "logged-in":
		if snap.Credentials == nil {
			return nil, fmt.Errorf("logged-in snapshot without credentials")
		}
		return LoggedIn{Credentials: *snap.Credentials}, nil
	case "login-failed":
		return LoginFailed{Message: snap.Message}, nil
	case "logging-out":
		if snap.Credentials == nil {
			return nil, fmt.Errorf("logging-out snapshot without credentials")
		}
		return LoggingOut{Credentials: *snap.Credentials}, nil
	case "logout-failed":
		if snap.Credentials == nil {
			return nil, fmt.Errorf("logout-failed snapshot without credentials")
		}
		return LogoutFailed{Credentials: *snap.Credentials, Message: snap.Message}, nil
	}
	return nil, fmt.Errorf("unknown login state kind %q", snap.Kind)
}
