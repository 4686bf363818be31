package controller

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/openshelf/loansync/pkg/account"
	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/bookdb"
	"github.com/openshelf/loansync/pkg/drm"
	"github.com/openshelf/loansync/pkg/opds"
	"github.com/openshelf/loansync/pkg/registry"
)

const loansURI = "https://example.com/loans"

// shared fixtures for sync and logout tests

func testProvider(withAuth bool) account.Provider {
	p := account.Provider{
		ID:       "urn:provider:test",
		Name:     "Test Library",
		LoansURI: loansURI,
	}
	if withAuth {
		p.Authentication = &account.Authentication{Type: "basic"}
	}
	return p
}

func testAccount(t *testing.T, provider account.Provider) *account.Account {
	t.Helper()
	database, err := bookdb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open a book database: %v", err)
	}
	return account.NewAccount(uuid.New(), provider, database, nil)
}

func basicCredentials() account.Credentials {
	return account.Credentials{Barcode: "barcode", PIN: "pin"}
}

func adobeCredentials() account.Credentials {
	c := basicCredentials()
	c.Adobe = &account.AdobeCredentials{
		VendorID:         "OmniConsumerProducts",
		ClientToken:      "NYNYPL|536818535|someone|s3cret",
		DeviceManagerURI: "https://example.com/devices{?device_id}",
		PostActivation: &account.AdobeActivation{
			DeviceID: "484799fb-d1aa-4b5d-8179-95e0b115ace4",
			UserID:   "someone",
		},
	}
	return c
}

// seedBook stores a book locally and returns its identifier.
func seedBook(t *testing.T, acct *account.Account, reg *registry.Registry, idText, state string) book.ID {
	t.Helper()
	feedEntry := opds.Entry{
		ID:           idText,
		Title:        "Seeded " + idText,
		Availability: opds.Availability{State: state},
	}
	id := book.NewID(feedEntry)
	entry, err := acct.Database().CreateOrUpdate(id, feedEntry)
	if err != nil {
		t.Fatalf("Failed to seed book %s: %v", idText, err)
	}
	if reg != nil {
		b := entry.Book()
		reg.Update(registry.Entry{Book: b, Status: book.StatusOf(b)})
	}
	return id
}

// feedXML builds a loans feed containing the given entry identifiers.
func feedXML(ids ...string) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog">` + "\n")
	sb.WriteString("<id>urn:loans:test</id><title>Loans</title><updated>2025-06-01T10:00:00Z</updated>\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, `<entry><id>%s</id><title>Title of %s</title><updated>2025-06-01T09:00:00Z</updated>`, id, id)
		sb.WriteString(`<link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="https://example.com/fulfill">`)
		sb.WriteString(`<opds:availability status="loaned"/></link></entry>` + "\n")
	}
	sb.WriteString("</feed>")
	return []byte(sb.String())
}

// recordingRevoker remembers each revocation and the database contents at
// the moment it was requested.
type recordingRevoker struct {
	calls       []book.ID
	booksAtCall [][]book.ID
}

func (r *recordingRevoker) RevokeBook(acct *account.Account, id book.ID) {
	r.calls = append(r.calls, id)
	r.booksAtCall = append(r.booksAtCall, acct.Database().Books())
}

// fake DRM connector and executor

type fakeConnector struct {
	failWith    string
	deactivated int
}

func (c *fakeConnector) DeactivateDevice(
	receiver drm.DeactivationReceiver,
	vendor drm.VendorID,
	deviceManagerURI string,
	user drm.UserID,
	device drm.DeviceID,
) {
	c.deactivated++
	if c.failWith != "" {
		receiver.OnDeactivationError(c.failWith)
		return
	}
	receiver.OnDeactivationSucceeded()
}

type fakeExecutor struct {
	connector drm.Connector
}

func (e *fakeExecutor) Execute(p drm.Procedure) {
	p(e.connector)
}
