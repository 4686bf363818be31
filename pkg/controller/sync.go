// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The controller package implements the account-level tasks: syncing the
// local book set against the remote loans feed, and tearing down a session.
package controller

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/openshelf/loansync/pkg/account"
	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/httpclient"
	"github.com/openshelf/loansync/pkg/opds"
	"github.com/openshelf/loansync/pkg/registry"
	"github.com/openshelf/loansync/pkg/task"
)

// BookRevoker finishes the revocation of a loan with the lending service.
// Calls are fire-and-forget: failures are the revoker's concern.
type BookRevoker interface {
	RevokeBook(acct *account.Account, id book.ID)
}

// BookSyncTask brings one account's local book set into agreement with its
// remote loans feed. Single shot; an external scheduler serializes
// invocations for the same account.
type BookSyncTask struct {
	Account  *account.Account
	Registry *registry.Registry
	HTTP     httpclient.Client
	Parser   opds.Parser
	Revoker  BookRevoker
}

// Execute runs the sync to completion. The returned error covers whole-task
// failures (transport, parse); per-entry database failures are logged and
// skipped so one bad entry does not lose the rest of the feed.
func (t *BookSyncTask) Execute() (task.Result, error) {
	log.Debugf("syncing account %s", t.Account.ID())
	defer log.Debugf("finished syncing account %s", t.Account.ID())

	rec := task.NewRecorder()
	err := t.execute(rec)
	return rec.Finish(), err
}

func (t *BookSyncTask) execute(rec *task.Recorder) error {

	rec.Begin("checking sync preconditions")
	provider := t.Account.Provider()
	if provider.Authentication == nil {
		log.Debugf("account %s does not support syncing", t.Account.ID())
		rec.CurrentStepSkipped("provider declares no authentication")
		return nil
	}
	credentials, ok := account.CredentialsOf(t.Account.LoginState())
	if !ok {
		log.Debugf("account %s holds no credentials, aborting", t.Account.ID())
		rec.CurrentStepSkipped("no credentials")
		return nil
	}
	rec.CurrentStepSucceeded("sync is possible")

	rec.Begin("fetching loans feed")
	auth := &httpclient.Auth{
		Username: credentials.Barcode,
		Password: credentials.PIN,
	}
	response, err := t.HTTP.Get(auth, provider.LoansURI)
	if err != nil {
		rec.CurrentStepFailed("transport failure", err)
		return err
	}
	defer response.Body.Close()

	if response.Status == http.StatusUnauthorized {
		log.Debugf("removing credentials due to 401 server response")
		t.Account.SetLoginState(account.LoggedOut{})
		rec.CurrentStepSucceeded("session expired, credentials dropped")
		return nil
	}
	if !response.OK() {
		err := fmt.Errorf("%s: %d: %s", provider.LoansURI, response.Status, response.Message)
		rec.CurrentStepFailed("server error", err)
		return err
	}
	rec.CurrentStepSucceeded("feed fetched")

	rec.Begin("parsing loans feed")
	feed, err := t.Parser.Parse(provider.LoansURI, response.Body)
	if err != nil {
		rec.CurrentStepFailed("malformed feed", err)
		return err
	}
	rec.CurrentStepSucceeded(fmt.Sprintf("%d entries", len(feed.Entries)))

	t.reconcile(rec, feed)
	return nil
}

func (t *BookSyncTask) reconcile(rec *task.Recorder, feed *opds.Feed) {

	database := t.Account.Database()

	// the set of books on disk, snapshotted before any entry is processed;
	// anything in it that is not in the received feed has expired
	existing := database.Books()

	rec.Begin("updating local database")
	received := make(map[book.ID]bool, len(feed.Entries))
	updated := 0
	for _, feedEntry := range feed.Entries {
		id := book.NewID(feedEntry)
		received[id] = true
		log.Debugf("[%s] updating", id.Brief())

		entry, err := database.CreateOrUpdate(id, feedEntry)
		if err != nil {
			log.Errorf("[%s] unable to update database entry: %v", id.Brief(), err)
			continue
		}
		b := entry.Book()
		t.Registry.Update(registry.Entry{Book: b, Status: book.StatusOf(b)})
		updated++
	}
	rec.CurrentStepSucceeded(fmt.Sprintf("%d of %d entries stored", updated, len(feed.Entries)))

	// Delete any book that previously existed but is not in the received
	// set. Revoked books are queued and revoked only after all deletions
	// have completed.

	rec.Begin("removing expired loans")
	var revoking []book.ID
	for _, existingID := range existing {
		log.Debugf("[%s] checking for deletion", existingID.Brief())
		if received[existingID] {
			log.Debugf("[%s] keeping", existingID.Brief())
			continue
		}

		entry, err := database.Entry(existingID)
		if err != nil {
			log.Errorf("[%s] unable to look up entry: %v", existingID.Brief(), err)
			continue
		}
		if entry.Book().Entry.Availability.State == opds.AvailabilityRevoked {
			revoking = append(revoking, existingID)
		}

		log.Debugf("[%s] deleting", existingID.Brief())
		if err := entry.Delete(); err != nil {
			log.Errorf("[%s] unable to delete entry: %v", existingID.Brief(), err)
			continue
		}
		t.Registry.ClearFor(existingID)
	}
	rec.CurrentStepSucceeded("expired loans removed")

	rec.Begin("finishing revocations")
	if len(revoking) == 0 {
		rec.CurrentStepSkipped("nothing to revoke")
		return
	}
	if t.Revoker == nil {
		rec.CurrentStepSkipped("no revoker configured")
		return
	}
	for _, id := range revoking {
		log.Debugf("[%s] revoking", id.Brief())
		t.Revoker.RevokeBook(t.Account, id)
	}
	rec.CurrentStepSucceeded(fmt.Sprintf("%d revocations requested", len(revoking)))
}
