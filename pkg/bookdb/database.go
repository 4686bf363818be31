// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The bookdb package manages the on-disk catalog of one account's borrowed
// books. The directory tree is the ground truth: every read path
// reconstructs state from the file system, and every write follows a
// write-new-then-replace discipline so a crash never corrupts the previous
// valid record.
package bookdb

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	jsonschema "github.com/xeipuuv/gojsonschema"

	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/opds"
)

//go:embed data/meta.schema.json
var jsfs embed.FS

// DatabaseError is returned for any failure to persist or load a record.
type DatabaseError struct {
	Op   string
	Path string
	Err  error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("book database %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Database is the set of book records stored under one directory. One
// subdirectory per book, named by its identifier.
type Database struct {
	mu      sync.Mutex
	dir     string
	schema  *jsonschema.Schema
	entries map[book.ID]*Entry
}

// Open opens a book database rooted at dir, creating the directory if
// needed. Subdirectories holding unreadable or invalid metadata are logged
// and skipped; they do not prevent the database from opening.
func Open(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &DatabaseError{Op: "mkdir", Path: dir, Err: err}
	}

	schema, err := compileMetaSchema()
	if err != nil {
		return nil, err
	}

	db := &Database{
		dir:     dir,
		schema:  schema,
		entries: make(map[book.ID]*Entry),
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DatabaseError{Op: "scan", Path: dir, Err: err}
	}
	for _, f := range files {
		if !f.IsDir() {
			continue
		}
		id := book.ID(f.Name())
		entry, err := db.openEntry(id)
		if err != nil {
			log.Errorf("[%s] skipping unreadable database entry: %v", id.Brief(), err)
			continue
		}
		db.entries[id] = entry
	}

	return db, nil
}

func compileMetaSchema() (*jsonschema.Schema, error) {
	metaSchema, err := jsfs.ReadFile("data/meta.schema.json")
	if err != nil {
		return nil, err
	}
	schema, err := jsonschema.NewSchema(jsonschema.NewBytesLoader(metaSchema))
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// Books enumerates the identifiers of every stored book, in ascending
// identifier order.
func (db *Database) Books() []book.ID {
	db.mu.Lock()
	defer db.mu.Unlock()

	ids := make([]book.ID, 0, len(db.entries))
	for id := range db.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Entry returns the database entry for a book.
func (db *Database) Entry(id book.ID) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry, ok := db.entries[id]
	if !ok {
		return nil, &DatabaseError{Op: "lookup", Path: string(id), Err: os.ErrNotExist}
	}
	return entry, nil
}

// CreateOrUpdate creates a record for the book if none exists, or merges the
// feed entry into the existing record. The feed entry wins for all metadata
// fields; format handles and their DRM and position state are preserved.
func (db *Database) CreateOrUpdate(id book.ID, feedEntry opds.Entry) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry, ok := db.entries[id]
	if !ok {
		entry = &Entry{
			db:  db,
			id:  id,
			dir: filepath.Join(db.dir, string(id)),
		}
		if err := os.MkdirAll(entry.dir, 0o755); err != nil {
			return nil, &DatabaseError{Op: "mkdir", Path: entry.dir, Err: err}
		}
	}

	if err := entry.writeMeta(feedEntry); err != nil {
		return nil, err
	}
	db.entries[id] = entry
	return entry, nil
}

// Delete removes every record in the database: metadata, content files and
// DRM artifacts alike. The database remains usable afterwards.
func (db *Database) Delete() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var firstErr error
	for id, entry := range db.entries {
		if err := os.RemoveAll(entry.dir); err != nil {
			log.Errorf("[%s] failed to delete database entry: %v", id.Brief(), err)
			if firstErr == nil {
				firstErr = &DatabaseError{Op: "delete", Path: entry.dir, Err: err}
			}
			continue
		}
		delete(db.entries, id)
	}
	return firstErr
}

// openEntry reconstructs an entry from its directory.
func (db *Database) openEntry(id book.ID) (*Entry, error) {
	entry := &Entry{
		db:  db,
		id:  id,
		dir: filepath.Join(db.dir, string(id)),
	}
	if err := entry.load(); err != nil {
		return nil, err
	}
	return entry, nil
}
