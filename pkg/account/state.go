// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package account

// LoginState is the closed set of session states an account can be in.
// Credentials exist only inside the states that carry them, so a logged-out
// account holding credentials is unrepresentable.
type LoginState interface {
	loginState()
}

type (

	// LoggedOut is the initial and post-logout state.
	LoggedOut struct{}

	// LoggingIn is the transient state while a login task runs.
	LoggingIn struct{}

	// LoggedIn holds the credentials of an authenticated session.
	LoggedIn struct {
		Credentials Credentials
	}

	// LoginFailed is the terminal state of a failed login.
	LoginFailed struct {
		Message string
	}

	// LoggingOut is the transient state while a logout task runs.
	LoggingOut struct {
		Credentials Credentials
	}

	// LogoutFailed preserves the credentials of a failed logout so that
	// the logout can be retried.
	LogoutFailed struct {
		Credentials Credentials
		Message     string
	}
)

func (LoggedOut) loginState()    {}
func (LoggingIn) loginState()    {}
func (LoggedIn) loginState()     {}
func (LoginFailed) loginState()  {}
func (LoggingOut) loginState()   {}
func (LogoutFailed) loginState() {}

// CredentialsOf extracts the credentials carried by a state, for the states
// that carry any.
func CredentialsOf(s LoginState) (Credentials, bool) {
	switch st := s.(type) {
	case LoggedIn:
		return st.Credentials, true
	case LoggingOut:
		return st.Credentials, true
	case LogoutFailed:
		return st.Credentials, true
	}
	return Credentials{}, false
}
