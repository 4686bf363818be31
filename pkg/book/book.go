// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The book package defines book identifiers, the book record and the
// derivation of user-visible book statuses.
package book

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/openshelf/loansync/pkg/opds"
)

type (

	// ID is the stable identifier of a book, derived from the canonical
	// identifier of its feed entry. IDs compare and sort by string value.
	ID string

	// Kind designates one of the supported content formats.
	Kind string

	// Book is the in-memory view of one catalog record: the feed entry it
	// was built from plus the formats found on disk for it.
	Book struct {
		ID      ID
		Entry   opds.Entry
		Formats []Format
	}

	// Format is the snapshot of one format's persisted state, sufficient
	// to derive a status without touching the disk again.
	Format struct {
		Kind           Kind
		ContentPresent bool
		LicensePresent bool
		RightsPresent  bool
	}
)

const (
	KindEPUB      Kind = "epub"
	KindPDF       Kind = "pdf"
	KindAudioBook Kind = "audiobook"
)

// ErrUnknownFormat is returned when a content type maps to no supported format.
var ErrUnknownFormat = errors.New("unsupported book format")

// NewID derives a book identifier from a feed entry.
func NewID(entry opds.Entry) ID {
	return NewIDFromText(entry.ID)
}

// NewIDFromText derives a book identifier from the canonical identifier of a
// feed entry. The derivation is a SHA-256 digest, hex encoded, so identifiers
// are filesystem safe regardless of what the feed puts in its id element.
func NewIDFromText(text string) ID {
	sum := sha256.Sum256([]byte(text))
	return ID(hex.EncodeToString(sum[:]))
}

// Brief returns a shortened form of the identifier for logging.
func (i ID) Brief() string {
	if len(i) > 8 {
		return string(i)[:8]
	}
	return string(i)
}

func (i ID) String() string {
	return string(i)
}

// KindForContentType maps an acquisition content type to a format kind.
func KindForContentType(contentType string) (Kind, error) {
	switch contentType {
	case "application/epub+zip":
		return KindEPUB, nil
	case "application/pdf":
		return KindPDF, nil
	case "application/audiobook+json", "audio/mpeg":
		return KindAudioBook, nil
	}
	return "", ErrUnknownFormat
}

// KindsForEntry returns the supported formats reachable through the entry's
// acquisition links, in declaration order, without duplicates.
func KindsForEntry(entry opds.Entry) []Kind {
	var kinds []Kind
	seen := make(map[Kind]bool)
	for _, acq := range entry.Acquisitions {
		kind, err := KindForContentType(acq.Type)
		if err != nil {
			continue
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
