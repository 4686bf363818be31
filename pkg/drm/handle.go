// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package drm

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/openshelf/loansync/pkg/book"
)

// Handle persists the DRM material of one book format inside a directory.
// The file system is the ground truth: a handle constructed on the same
// directory always observes the last fully written state, and every setter
// rereads the directory after writing.
type Handle struct {
	dir  string
	kind book.Kind
	info Information
}

// NewHandle opens a rights handle on a directory. The directory is created
// if it does not exist yet.
func NewHandle(dir string, kind book.Kind) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}
	h := &Handle{dir: dir, kind: kind}
	info, err := h.Read()
	if err != nil {
		return nil, err
	}
	h.info = info
	return h, nil
}

func (h *Handle) licensePath() string {
	return filepath.Join(h.dir, fmt.Sprintf("%s-meta_adobe.acsm", h.kind))
}

func (h *Handle) rightsPath() string {
	return filepath.Join(h.dir, fmt.Sprintf("%s-rights_adobe.xml", h.kind))
}

// Info returns the snapshot taken by the last read or mutation.
func (h *Handle) Info() Information {
	return h.info
}

// Read reconstructs the DRM information from the current directory contents.
func (h *Handle) Read() (Information, error) {
	var info Information

	license := h.licensePath()
	if _, err := os.Stat(license); err == nil {
		info.LicensePath = license
	} else if !os.IsNotExist(err) {
		return Information{}, &PersistenceError{Op: "stat", Path: license, Err: err}
	}

	rights := h.rightsPath()
	data, err := os.ReadFile(rights)
	switch {
	case err == nil:
		parsed := new(Rights)
		if err := xml.Unmarshal(data, parsed); err != nil {
			return Information{}, &PersistenceError{Op: "parse", Path: rights, Err: err}
		}
		info.RightsPath = rights
		info.Rights = parsed
	case os.IsNotExist(err):
		// no rights stored
	default:
		return Information{}, &PersistenceError{Op: "read", Path: rights, Err: err}
	}

	return info, nil
}

// SetLicenseDocument stores the license request document, or deletes it when
// data is nil. The returned Information reflects the post-write disk state.
func (h *Handle) SetLicenseDocument(data []byte) (Information, error) {
	path := h.licensePath()
	if data == nil {
		if err := removeIfPresent(path); err != nil {
			return Information{}, err
		}
	} else {
		if err := writeAtomically(path, data); err != nil {
			return Information{}, err
		}
	}
	return h.reload()
}

// SetRightsDocument stores the rights document, or deletes it when rights is
// nil. The returned Information reflects the post-write disk state.
func (h *Handle) SetRightsDocument(rights *Rights) (Information, error) {
	path := h.rightsPath()
	if rights == nil {
		if err := removeIfPresent(path); err != nil {
			return Information{}, err
		}
	} else {
		data, err := xml.MarshalIndent(rights, "", "  ")
		if err != nil {
			return Information{}, &PersistenceError{Op: "serialize", Path: path, Err: err}
		}
		if err := writeAtomically(path, data); err != nil {
			return Information{}, err
		}
	}
	return h.reload()
}

func (h *Handle) reload() (Information, error) {
	info, err := h.Read()
	if err != nil {
		return Information{}, err
	}
	h.info = info
	return info, nil
}

// writeAtomically writes a full buffer to a temporary file in the target
// directory and renames it over the destination, so a crash mid-write leaves
// the previous contents intact.
func writeAtomically(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return &PersistenceError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func removeIfPresent(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return &PersistenceError{Op: "remove", Path: path, Err: err}
	}
	if err == nil {
		log.Debugf("removed %s", path)
	}
	return nil
}
