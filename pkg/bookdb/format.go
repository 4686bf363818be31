// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bookdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openshelf/loansync/pkg/book"
	"github.com/openshelf/loansync/pkg/drm"
)

// Position is the saved reading or playback position for one format.
type Position struct {
	Fraction float64   `json:"fraction"`
	Updated  time.Time `json:"updated"`
}

// FormatHandle owns the persisted state of one content format of a book:
// the downloaded content, the saved position and the DRM rights handle. All
// of its files live in the book directory under a format-specific prefix.
type FormatHandle struct {
	entry *Entry
	kind  book.Kind
	drm   *drm.Handle
}

func newFormatHandle(e *Entry, kind book.Kind) (*FormatHandle, error) {
	rights, err := drm.NewHandle(e.dir, kind)
	if err != nil {
		return nil, &DatabaseError{Op: "drm", Path: e.dir, Err: err}
	}
	return &FormatHandle{entry: e, kind: kind, drm: rights}, nil
}

// Kind returns the format this handle manages.
func (f *FormatHandle) Kind() book.Kind {
	return f.kind
}

// DRM returns the rights handle for this format.
func (f *FormatHandle) DRM() *drm.Handle {
	return f.drm
}

func (f *FormatHandle) contentPath() string {
	ext := "bin"
	switch f.kind {
	case book.KindEPUB:
		ext = "epub"
	case book.KindPDF:
		ext = "pdf"
	case book.KindAudioBook:
		ext = "json"
	}
	return filepath.Join(f.entry.dir, fmt.Sprintf("%s-book.%s", f.kind, ext))
}

func (f *FormatHandle) positionPath() string {
	return filepath.Join(f.entry.dir, fmt.Sprintf("%s-position.json", f.kind))
}

// Content returns the path of the downloaded content, if any.
func (f *FormatHandle) Content() (string, bool) {
	path := f.contentPath()
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// CopyInContent installs a downloaded content file, replacing any previous
// one atomically.
func (f *FormatHandle) CopyInContent(source string) error {
	in, err := os.Open(source)
	if err != nil {
		return &DatabaseError{Op: "open", Path: source, Err: err}
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return &DatabaseError{Op: "read", Path: source, Err: err}
	}
	if err := writeReplacing(f.contentPath(), data); err != nil {
		return err
	}

	f.entry.mu.Lock()
	f.entry.rebuildLocked()
	f.entry.mu.Unlock()
	return nil
}

// DeleteContent removes the downloaded content, if any.
func (f *FormatHandle) DeleteContent() error {
	err := os.Remove(f.contentPath())
	if err != nil && !os.IsNotExist(err) {
		return &DatabaseError{Op: "remove", Path: f.contentPath(), Err: err}
	}
	f.entry.mu.Lock()
	f.entry.rebuildLocked()
	f.entry.mu.Unlock()
	return nil
}

// Position returns the saved position, or a zero position when none has
// been saved yet.
func (f *FormatHandle) Position() (Position, error) {
	data, err := os.ReadFile(f.positionPath())
	if os.IsNotExist(err) {
		return Position{}, nil
	}
	if err != nil {
		return Position{}, &DatabaseError{Op: "read", Path: f.positionPath(), Err: err}
	}
	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return Position{}, &DatabaseError{Op: "parse", Path: f.positionPath(), Err: err}
	}
	return pos, nil
}

// SetPosition saves the reading or playback position.
func (f *FormatHandle) SetPosition(pos Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return &DatabaseError{Op: "serialize", Path: f.positionPath(), Err: err}
	}
	return writeReplacing(f.positionPath(), data)
}

// snapshot reduces the handle to the flags status derivation needs.
func (f *FormatHandle) snapshot() book.Format {
	_, contentPresent := f.Content()
	info := f.drm.Info()
	return book.Format{
		Kind:           f.kind,
		ContentPresent: contentPresent,
		LicensePresent: info.LicensePath != "",
		RightsPresent:  info.Rights != nil,
	}
}
