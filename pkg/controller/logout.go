// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package controller

import (
	"fmt"

	"github.com/jtacoma/uritemplates"
	log "github.com/sirupsen/logrus"

	"github.com/openshelf/loansync/pkg/account"
	"github.com/openshelf/loansync/pkg/drm"
	"github.com/openshelf/loansync/pkg/httpclient"
	"github.com/openshelf/loansync/pkg/registry"
	"github.com/openshelf/loansync/pkg/task"
)

// DeactivationError is the structured failure reported by the DRM connector
// during device deactivation.
type DeactivationError struct {
	Message string
}

func (e *DeactivationError) Error() string {
	return fmt.Sprintf("device deactivation failed: %s", e.Message)
}

// AccountLogoutTask tears down a logged-in session: DRM device
// deactivation, advisory device-manager notification, local book purge,
// credential erasure. DRM deactivation completes, successfully or not,
// strictly before any local deletion.
type AccountLogoutTask struct {
	Account  *account.Account
	Registry *registry.Registry
	HTTP     httpclient.Client

	// Executor gives access to the DRM connector. May be nil when the
	// application runs without DRM support, in which case deactivation
	// is skipped even for credentials carrying activation data.
	Executor drm.Executor
}

// Execute runs the logout to completion and reports its steps.
func (t *AccountLogoutTask) Execute() task.Result {
	log.Debugf("logging out account %s", t.Account.ID())

	rec := task.NewRecorder()

	rec.Begin("checking login state")
	state, ok := t.Account.LoginState().(account.LoggedIn)
	if !ok {
		rec.CurrentStepSkipped("not logged in, nothing to do")
		return rec.Finish()
	}
	credentials := state.Credentials
	rec.CurrentStepSucceeded("logged in")

	t.Account.SetLoginState(account.LoggingOut{Credentials: credentials})

	rec.Begin("deactivating DRM device")
	switch {
	case credentials.Adobe == nil || credentials.Adobe.PostActivation == nil:
		rec.CurrentStepSkipped("credentials carry no activation data")
	case t.Executor == nil:
		rec.CurrentStepSkipped("no DRM connector configured")
	default:
		if err := t.deactivateDevice(credentials.Adobe); err != nil {
			// fully recoverable: nothing has been deleted, and the
			// credentials are preserved for a retry
			log.Errorf("account %s: %v", t.Account.ID(), err)
			rec.CurrentStepFailed("device deactivation failed", err)
			t.Account.SetLoginState(account.LogoutFailed{
				Credentials: credentials,
				Message:     err.Error(),
			})
			return rec.Finish()
		}
		rec.CurrentStepSucceeded("device deactivated")
	}

	rec.Begin("notifying device manager")
	t.notifyDeviceManager(rec, credentials)

	rec.Begin("deleting book database")
	database := t.Account.Database()
	known := database.Books()
	if err := database.Delete(); err != nil {
		// local cleanup is best effort at this point: the remote
		// session is gone, so the logout still completes
		log.Errorf("account %s: failed to delete book database: %v", t.Account.ID(), err)
		rec.CurrentStepFailed("database deletion failed", err)
	} else {
		for _, id := range known {
			t.Registry.ClearFor(id)
		}
		rec.CurrentStepSucceeded(fmt.Sprintf("%d books deleted", len(known)))
	}

	rec.Begin("discarding credentials")
	t.Account.SetLoginState(account.LoggedOut{})
	rec.CurrentStepSucceeded("logged out")

	return rec.Finish()
}

// deactivateDevice runs the connector deactivation and blocks until the
// receiver resolves. The wait is unbounded; timeout policy, if any, belongs
// to the executor contract.
func (t *AccountLogoutTask) deactivateDevice(adobe *account.AdobeCredentials) error {
	receiver := &deactivationReceiver{ch: make(chan error, 1)}

	t.Executor.Execute(func(connector drm.Connector) {
		connector.DeactivateDevice(
			receiver,
			adobe.VendorID,
			adobe.DeviceManagerURI,
			adobe.PostActivation.UserID,
			adobe.PostActivation.DeviceID,
		)
	})

	return <-receiver.ch
}

type deactivationReceiver struct {
	ch chan error
}

func (r *deactivationReceiver) OnDeactivationSucceeded() {
	r.ch <- nil
}

func (r *deactivationReceiver) OnDeactivationError(message string) {
	r.ch <- &DeactivationError{Message: message}
}

// notifyDeviceManager tells the lending service that this device
// deactivated. Advisory only: failures are logged, never surfaced.
func (t *AccountLogoutTask) notifyDeviceManager(rec *task.Recorder, credentials account.Credentials) {
	adobe := credentials.Adobe
	if adobe == nil || adobe.DeviceManagerURI == "" || adobe.PostActivation == nil {
		rec.CurrentStepSkipped("no device manager URI")
		return
	}

	uri := expandDeviceManagerURI(adobe.DeviceManagerURI, adobe.PostActivation.DeviceID)
	auth := &httpclient.Auth{
		Username: credentials.Barcode,
		Password: credentials.PIN,
	}
	response, err := t.HTTP.Get(auth, uri)
	if err != nil {
		log.Errorf("device manager notification failed: %v", err)
		rec.CurrentStepSucceeded("notification failed, ignored")
		return
	}
	response.Body.Close()
	if !response.OK() {
		log.Errorf("device manager notification failed: %d: %s", response.Status, response.Message)
		rec.CurrentStepSucceeded("notification rejected, ignored")
		return
	}
	rec.CurrentStepSucceeded("device manager notified")
}

// expandDeviceManagerURI resolves a templated device manager URI against the
// device identifier. A non-template URI passes through unchanged.
func expandDeviceManagerURI(uri string, device drm.DeviceID) string {
	template, err := uritemplates.Parse(uri)
	if err != nil {
		return uri
	}
	expanded, err := template.Expand(map[string]interface{}{"device_id": string(device)})
	if err != nil {
		return uri
	}
	return expanded
}
