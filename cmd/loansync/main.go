// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// loansync is a thin application shell around the sync engine: it loads the
// configuration, opens the account store and runs a one-shot sync. With
// -watch it keeps running and re-syncs whenever the configuration file
// changes.
package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/openshelf/loansync/pkg/account"
	"github.com/openshelf/loansync/pkg/bookdb"
	"github.com/openshelf/loansync/pkg/conf"
	"github.com/openshelf/loansync/pkg/controller"
	"github.com/openshelf/loansync/pkg/httpclient"
	"github.com/openshelf/loansync/pkg/opds"
	"github.com/openshelf/loansync/pkg/registry"
	"github.com/openshelf/loansync/pkg/stor"
)

func main() {

	watch := flag.Bool("watch", false, "keep running and re-sync on configuration changes")
	flag.Parse()

	configFile := os.Getenv("LOANSYNC_CONFIG")
	if configFile == "" {
		log.Fatal("Failed to retrieve the configuration file path.")
	}

	c, err := conf.Init(configFile)
	if err != nil {
		log.Fatalf("Failed to read the configuration: %v", err)
	}
	c.InitLogging()

	st, err := stor.Init(c.Dsn)
	if err != nil {
		log.Fatalf("Failed to open the account store: %v", err)
	}

	reg := registry.New()

	acct, err := openAccount(c, st)
	if err != nil {
		log.Fatalf("Failed to open the account: %v", err)
	}

	runSync(c, acct, reg)

	if *watch {
		watchConfig(configFile, c, acct, reg)
	}
}

// openAccount finds or creates the account record for the configured
// provider and restores its login state.
func openAccount(c *conf.Config, st stor.Store) (*account.Account, error) {

	records, err := st.Account().FindByProvider(c.Provider.ID)
	if err != nil {
		return nil, err
	}

	var record *stor.AccountRecord
	if len(*records) > 0 {
		record = &(*records)[0]
	} else {
		record = &stor.AccountRecord{
			UUID:         uuid.New().String(),
			ProviderID:   c.Provider.ID,
			ProviderName: c.Provider.Name,
			LoansURI:     c.Provider.LoansURI,
		}
		if err := record.Validate(); err != nil {
			return nil, err
		}
		if err := st.Account().Create(record); err != nil {
			return nil, err
		}
		log.Infof("Created account %s for provider %s", record.UUID, c.Provider.ID)
	}

	accountID, err := uuid.Parse(record.UUID)
	if err != nil {
		return nil, err
	}

	database, err := bookdb.Open(filepath.Join(c.DataDir, record.UUID, "books"))
	if err != nil {
		return nil, err
	}

	persister := stor.Persister{Store: st}
	acct := account.NewAccount(accountID, c.Provider, database, persister)

	state, err := persister.LoadLoginState(accountID)
	if err != nil {
		return nil, err
	}
	acct.RestoreLoginState(state)

	return acct, nil
}

func runSync(c *conf.Config, acct *account.Account, reg *registry.Registry) {

	syncTask := controller.BookSyncTask{
		Account:  acct,
		Registry: reg,
		HTTP:     httpclient.NewClient(time.Duration(c.HTTPTimeoutSeconds) * time.Second),
		Parser:   opds.NewParser(),
	}

	result, err := syncTask.Execute()
	for _, step := range result.Steps {
		log.Infof("sync: %s: %s %s", step.Description, step.Resolution, step.Message)
	}
	if err != nil {
		log.Errorf("Sync failed: %v", err)
		return
	}
	log.Infof("Sync done, %d books in the registry", len(reg.Books()))
}

// watchConfig re-reads the configuration and re-runs the sync whenever the
// configuration file is written.
func watchConfig(configFile string, c *conf.Config, acct *account.Account, reg *registry.Registry) {

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("Error creating watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(configFile)); err != nil {
		log.Fatalf("Error watching directory: %v", err)
	}
	log.Infof("Monitoring configuration file: %s", configFile)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-stop:
			log.Info("Watcher stop requested.")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != configFile {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				log.Infof("Configuration changed: %s", event.Name)
				fresh, err := conf.Init(configFile)
				if err != nil {
					log.Errorf("Ignoring invalid configuration: %v", err)
					continue
				}
				*c = *fresh
				c.InitLogging()
				runSync(c, acct, reg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("Error watching: %v", err)
		}
	}
}
