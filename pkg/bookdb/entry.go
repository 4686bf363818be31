// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bookdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/xeipuuv/gojsonschema"

	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/opds"
)

const metaFileName = "meta.json"

// Entry owns the persisted state of one book: its metadata file and any
// format handles that operations have created for it.
type Entry struct {
	db  *Database
	id  book.ID
	dir string

	mu      sync.Mutex
	book    book.Book
	formats []*FormatHandle
}

// ID returns the identifier of the book this entry stores.
func (e *Entry) ID() book.ID {
	return e.id
}

// Book returns the current snapshot of the record.
func (e *Entry) Book() book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book
}

// Delete removes all persisted state for this book. Once deleted, the book
// no longer appears in the database enumeration.
func (e *Entry) Delete() error {
	return e.db.deleteEntry(e.id)
}

// FindFormatHandle returns the handle for the given format if one exists.
// Lookup never creates a handle.
func (e *Entry) FindFormatHandle(kind book.Kind) (*FormatHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range e.formats {
		if f.kind == kind {
			return f, true
		}
	}
	return nil, false
}

// FormatHandle returns the handle for the given format, creating it if this
// is the first operation to need one. The format must be reachable through
// the entry's acquisition links.
func (e *Entry) FormatHandle(kind book.Kind) (*FormatHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, f := range e.formats {
		if f.kind == kind {
			return f, nil
		}
	}

	supported := false
	for _, k := range book.KindsForEntry(e.book.Entry) {
		if k == kind {
			supported = true
		}
	}
	if !supported {
		return nil, &DatabaseError{Op: "format", Path: e.dir,
			Err: fmt.Errorf("entry offers no %s acquisition", kind)}
	}

	handle, err := newFormatHandle(e, kind)
	if err != nil {
		return nil, err
	}
	e.formats = append(e.formats, handle)
	e.rebuildLocked()
	return handle, nil
}

// load reconstructs the entry from its directory contents.
func (e *Entry) load() error {
	metaPath := filepath.Join(e.dir, metaFileName)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return &DatabaseError{Op: "read", Path: metaPath, Err: err}
	}
	if err := e.validateMeta(data); err != nil {
		return err
	}
	feedEntry, err := opds.DeserializeEntry(bytes.NewReader(data))
	if err != nil {
		return &DatabaseError{Op: "parse", Path: metaPath, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.book = book.Book{ID: e.id, Entry: feedEntry}
	e.formats = nil

	// a format handle exists on disk iff any file with its prefix does
	for _, kind := range []book.Kind{book.KindEPUB, book.KindPDF, book.KindAudioBook} {
		present, err := e.formatPresent(kind)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		handle, err := newFormatHandle(e, kind)
		if err != nil {
			return err
		}
		e.formats = append(e.formats, handle)
	}

	e.rebuildLocked()
	return nil
}

func (e *Entry) formatPresent(kind book.Kind) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(e.dir, string(kind)+"-*"))
	if err != nil {
		return false, &DatabaseError{Op: "scan", Path: e.dir, Err: err}
	}
	return len(matches) > 0, nil
}

// writeMeta persists a feed entry as the record metadata, replacing any
// previous metadata while keeping format state untouched. Called with the
// database lock held.
func (e *Entry) writeMeta(feedEntry opds.Entry) error {
	var buf bytes.Buffer
	if err := opds.SerializeEntry(&buf, feedEntry); err != nil {
		return &DatabaseError{Op: "serialize", Path: e.dir, Err: err}
	}

	metaPath := filepath.Join(e.dir, metaFileName)
	if err := writeReplacing(metaPath, buf.Bytes()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.ID = e.id
	e.book.Entry = feedEntry
	e.rebuildLocked()
	return nil
}

// rebuildLocked refreshes the book snapshot from the format handles. Called
// with e.mu held.
func (e *Entry) rebuildLocked() {
	formats := make([]book.Format, 0, len(e.formats))
	for _, f := range e.formats {
		formats = append(formats, f.snapshot())
	}
	e.book.Formats = formats
}

func (e *Entry) validateMeta(data []byte) error {
	metaPath := filepath.Join(e.dir, metaFileName)
	result, err := e.db.schema.Validate(jsonschema.NewBytesLoader(data))
	if err != nil {
		return &DatabaseError{Op: "validate", Path: metaPath, Err: err}
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return &DatabaseError{Op: "validate", Path: metaPath,
			Err: fmt.Errorf("metadata rejected by schema: %v", msgs)}
	}
	return nil
}

// deleteEntry removes one entry and unregisters it.
func (db *Database) deleteEntry(id book.ID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry, ok := db.entries[id]
	if !ok {
		return &DatabaseError{Op: "delete", Path: string(id), Err: os.ErrNotExist}
	}
	if err := os.RemoveAll(entry.dir); err != nil {
		return &DatabaseError{Op: "delete", Path: entry.dir, Err: err}
	}
	delete(db.entries, id)
	return nil
}

// writeReplacing writes data to a temporary file next to the target and
// renames it into place.
func writeReplacing(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return &DatabaseError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	serr := tmp.Sync()
	cerr := tmp.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		os.Remove(tmpName)
		return &DatabaseError{Op: "write", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &DatabaseError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
