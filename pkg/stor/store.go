// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The stor package manages the durable storage of account records.
package stor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type (

	// generic store
	dbStore struct {
		db *gorm.DB
	}

	// entity stores
	accountStore dbStore

	// Store interface, giving access to specialized interfaces
	Store interface {
		Account() AccountRepository
	}

	// AccountRepository interface, defining account operations
	AccountRepository interface {
		ListAll() (*[]AccountRecord, error)
		FindByProvider(providerID string) (*[]AccountRecord, error)
		Count() (int64, error)
		Get(uuid string) (*AccountRecord, error)
		Create(a *AccountRecord) error
		Update(a *AccountRecord) error
		Delete(a *AccountRecord) error
	}
)

// implementation of the repository interfaces
func (s *dbStore) Account() AccountRepository {
	return (*accountStore)(s)
}

// Init initializes the database
func Init(dsn string) (Store, error) {
	var err error

	dialect, cnx := dbFromURI(dsn)
	if dialect == "error" {
		return nil, fmt.Errorf("incorrect database source name: %q", dsn)
	}
	if dialect != "sqlite3" {
		return nil, fmt.Errorf("unsupported dialect for a client store: %q", dialect)
	}

	// database logger
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level (Silent, Error, Warn, Info)
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,        // Enable color
		},
	)

	db, err := gorm.Open(GormDialector(cnx), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		log.Printf("Failed connecting to the database: %v", err)
		return nil, err
	}

	err = db.Exec("PRAGMA journal_mode = WAL").Error
	if err != nil {
		return nil, err
	}
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&AccountRecord{})
	if err != nil {
		log.Printf("Failed performing database automigrate: %v", err)
		return nil, err
	}

	stor := &dbStore{db: db}

	return stor, nil
}

// dbFromURI
func dbFromURI(uri string) (string, string) {
	parts := strings.Split(uri, "://")
	if len(parts) != 2 {
		return "error", ""
	}
	return parts[0], parts[1]
}
