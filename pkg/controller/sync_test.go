package controller

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/openshelf/loansync/pkg/account"
	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/bookdb"
	"github.com/openshelf/loansync/pkg/httpclient"
	"github.com/openshelf/loansync/pkg/opds"
	"github.com/openshelf/loansync/pkg/registry"
	"github.com/openshelf/loansync/pkg/task"
)

// syncAccountAt builds a logged-in account over a database rooted at dir,
// for tests that need to reach into the database directory.
func syncAccountAt(t *testing.T, dir string) *account.Account {
	t.Helper()
	database, err := bookdb.Open(dir)
	if err != nil {
		t.Fatalf("Failed to open a book database: %v", err)
	}
	acct := account.NewAccount(uuid.New(), testProvider(true), database, nil)
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	return acct
}

func newSyncTask(acct *account.Account, reg *registry.Registry, client *httpclient.MockClient, revoker BookRevoker) *BookSyncTask {
	return &BookSyncTask{
		Account:  acct,
		Registry: reg,
		HTTP:     client,
		Parser:   opds.NewParser(),
		Revoker:  revoker,
	}
}

func TestSyncSkipsProviderWithoutAuthentication(t *testing.T) {

	acct := testAccount(t, testProvider(false))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()
	client := httpclient.NewMockClient()

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("Sync of an unsyncable provider must not fail, got %v", err)
	}
	if len(result.Steps) != 1 || result.Steps[0].Resolution != task.Skipped {
		t.Fatalf("Expected a single skipped step, got %+v", result.Steps)
	}
	if len(client.Requests()) != 0 {
		t.Errorf("No request must be made, got %v", client.Requests())
	}
}

func TestSyncSkipsAccountWithoutCredentials(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	reg := registry.New()
	client := httpclient.NewMockClient()

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("Sync of a logged-out account must not fail, got %v", err)
	}
	if len(result.Steps) != 1 || result.Steps[0].Resolution != task.Skipped {
		t.Fatalf("Expected a single skipped step, got %+v", result.Steps)
	}
	if len(client.Requests()) != 0 {
		t.Errorf("No request must be made, got %v", client.Requests())
	}
}

func TestSyncDropsCredentialsOn401(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()
	seedBook(t, acct, reg, "urn:book:survivor", opds.AvailabilityLoaned)

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusUnauthorized, "Unauthorized", nil)

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("A 401 is not a task failure, got %v", err)
	}
	if !result.Succeeded() {
		t.Errorf("Expected a successful result, got %+v", result.Steps)
	}
	if _, ok := acct.LoginState().(account.LoggedOut); !ok {
		t.Errorf("Expected the logged-out state, got %T", acct.LoginState())
	}
	if got := len(acct.Database().Books()); got != 1 {
		t.Errorf("A 401 must not touch the database, got %d books", got)
	}
	if got := len(reg.Books()); got != 1 {
		t.Errorf("A 401 must not touch the registry, got %d entries", got)
	}
}

func TestSyncFailsOnServerError(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusInternalServerError, "Internal Server Error", nil)

	result, err := newSyncTask(acct, registry.New(), client, nil).Execute()
	if err == nil {
		t.Fatal("Expected an error for a 500 response")
	}
	if result.Succeeded() {
		t.Errorf("Expected a failed result, got %+v", result.Steps)
	}
	if _, ok := acct.LoginState().(account.LoggedIn); !ok {
		t.Errorf("A server error must not drop credentials, got %T", acct.LoginState())
	}
}

func TestSyncFailsOnTransportError(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	client := httpclient.NewMockClient()
	client.AddError(loansURI, errors.New("connection refused"))

	_, err := newSyncTask(acct, registry.New(), client, nil).Execute()
	if err == nil {
		t.Fatal("Expected an error for a transport failure")
	}
}

func TestSyncFailsOnMalformedFeed(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK", []byte("this is not a feed"))

	_, err := newSyncTask(acct, registry.New(), client, nil).Execute()
	if err == nil {
		t.Fatal("Expected an error for a malformed feed")
	}
	var parseErr *opds.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected a parse error, got %v", err)
	}
}

func TestSyncStoresReceivedEntries(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK",
		feedXML("urn:book:alpha", "urn:book:beta"))

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Expected a successful result, got %+v", result.Steps)
	}

	if got := len(acct.Database().Books()); got != 2 {
		t.Fatalf("Expected 2 books in the database, got %d", got)
	}
	if got := len(reg.Books()); got != 2 {
		t.Fatalf("Expected 2 registry entries, got %d", got)
	}
	alpha := book.NewIDFromText("urn:book:alpha")
	entry, ok := reg.Book(alpha)
	if !ok {
		t.Fatal("Expected a registry entry for alpha")
	}
	if entry.Status != book.StatusLoaned {
		t.Errorf("Expected the loaned status, got %s", entry.Status)
	}
}

func TestSyncDeletesExpiredLoans(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()

	kept := seedBook(t, acct, reg, "urn:book:alpha", opds.AvailabilityLoaned)
	expired := seedBook(t, acct, reg, "urn:book:beta", opds.AvailabilityLoaned)

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK", feedXML("urn:book:alpha"))

	if _, err := newSyncTask(acct, reg, client, nil).Execute(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	books := acct.Database().Books()
	if len(books) != 1 || books[0] != kept {
		t.Fatalf("Expected only alpha to survive, got %v", books)
	}
	if _, ok := reg.Book(expired); ok {
		t.Error("Expected the expired loan to leave the registry")
	}
	if _, ok := reg.Book(kept); !ok {
		t.Error("Expected the kept loan to stay in the registry")
	}
}

func TestSyncRevokesAfterDeletion(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()

	seedBook(t, acct, reg, "urn:book:alpha", opds.AvailabilityLoaned)
	revoked := seedBook(t, acct, reg, "urn:book:beta", opds.AvailabilityRevoked)
	seedBook(t, acct, reg, "urn:book:gamma", opds.AvailabilityLoaned)

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK", feedXML("urn:book:alpha"))

	revoker := &recordingRevoker{}
	result, err := newSyncTask(acct, reg, client, revoker).Execute()
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Expected a successful result, got %+v", result.Steps)
	}

	if len(revoker.calls) != 1 || revoker.calls[0] != revoked {
		t.Fatalf("Expected exactly one revocation of beta, got %v", revoker.calls)
	}
	// beta must already be gone from the database when its revocation is
	// requested, and gamma, expired but not revoked, never gets one
	for _, id := range revoker.booksAtCall[0] {
		if id == revoked {
			t.Error("Revocation was requested before the deletion completed")
		}
	}
	if got := len(acct.Database().Books()); got != 1 {
		t.Errorf("Expected only alpha to survive, got %d books", got)
	}
}

// A database failure on one feed entry loses that entry, not the sync.
func TestSyncSkipsEntriesItCannotStore(t *testing.T) {

	dir := t.TempDir()
	acct := syncAccountAt(t, dir)
	reg := registry.New()

	// a plain file where the entry directory would go makes the store of
	// that entry fail
	blocked := book.NewIDFromText("urn:book:beta")
	if err := os.WriteFile(filepath.Join(dir, string(blocked)), []byte("in the way"), 0o644); err != nil {
		t.Fatalf("Failed to block the entry directory: %v", err)
	}

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK",
		feedXML("urn:book:alpha", "urn:book:beta"))

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("One bad entry must not fail the sync, got %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Expected a successful result, got %+v", result.Steps)
	}

	alpha := book.NewIDFromText("urn:book:alpha")
	books := acct.Database().Books()
	if len(books) != 1 || books[0] != alpha {
		t.Fatalf("Expected only alpha to be stored, got %v", books)
	}
	if _, ok := reg.Book(alpha); !ok {
		t.Error("Expected a registry entry for the stored book")
	}
	if _, ok := reg.Book(blocked); ok {
		t.Error("A book that failed to store must not reach the registry")
	}
}

// A deletion failure on one expired loan loses that deletion, not the sync.
func TestSyncSkipsEntriesItCannotDelete(t *testing.T) {

	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	acct := syncAccountAt(t, dir)
	reg := registry.New()

	removable := seedBook(t, acct, reg, "urn:book:alpha", opds.AvailabilityLoaned)
	stuck := seedBook(t, acct, reg, "urn:book:beta", opds.AvailabilityLoaned)

	// a read-only entry directory makes the deletion of its files fail
	stuckDir := filepath.Join(dir, string(stuck))
	if err := os.Chmod(stuckDir, 0o555); err != nil {
		t.Fatalf("Failed to make the entry directory read-only: %v", err)
	}
	t.Cleanup(func() { os.Chmod(stuckDir, 0o755) })

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK", feedXML())

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("One stuck deletion must not fail the sync, got %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Expected a successful result, got %+v", result.Steps)
	}

	books := acct.Database().Books()
	if len(books) != 1 || books[0] != stuck {
		t.Fatalf("Expected only the undeletable entry to remain, got %v", books)
	}
	if _, ok := reg.Book(removable); ok {
		t.Error("Expected the deleted loan to leave the registry")
	}
	if _, ok := reg.Book(stuck); !ok {
		t.Error("An entry whose deletion failed must keep its registry entry")
	}
}

func TestSyncWithoutRevokerSkipsRevocations(t *testing.T) {

	acct := testAccount(t, testProvider(true))
	acct.SetLoginState(account.LoggedIn{Credentials: basicCredentials()})
	reg := registry.New()
	seedBook(t, acct, reg, "urn:book:beta", opds.AvailabilityRevoked)

	client := httpclient.NewMockClient()
	client.AddResponse(loansURI, http.StatusOK, "OK", feedXML())

	result, err := newSyncTask(acct, reg, client, nil).Execute()
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	// the book is still deleted, only the revocation is dropped
	if got := len(acct.Database().Books()); got != 0 {
		t.Errorf("Expected an empty database, got %d books", got)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Resolution != task.Skipped {
		t.Errorf("Expected the revocation step to be skipped, got %+v", last)
	}
}
