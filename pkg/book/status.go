// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package book

import (
	"github.com/openshelf/loansync/pkg/opds"
)

// Status is the user-visible state of a book, derived from its record.
type Status string

const (
	StatusLoanable    Status = "loanable"
	StatusHoldable    Status = "holdable"
	StatusHeld        Status = "held"
	StatusLoaned      Status = "loaned"
	StatusDownloading Status = "downloading"
	StatusDownloaded  Status = "downloaded"
	StatusDRMLocked   Status = "drm-locked"
	StatusRevoked     Status = "revoked"
	StatusError       Status = "error"
)

// StatusOf derives the status of a book from its availability and the
// presence of downloaded content and DRM material. The derivation is a pure
// function of the record; transient states such as downloading are owned by
// the tasks that produce them.
func StatusOf(b Book) Status {
	switch b.Entry.Availability.State {
	case opds.AvailabilityRevoked:
		return StatusRevoked
	case opds.AvailabilityHeld:
		return StatusHeld
	case opds.AvailabilityHoldable:
		return StatusHoldable
	case opds.AvailabilityLoanable:
		return StatusLoanable
	}

	// loaned or open access: look at what is on disk
	for _, f := range b.Formats {
		if f.ContentPresent {
			return StatusDownloaded
		}
	}
	for _, f := range b.Formats {
		if f.LicensePresent && !f.RightsPresent {
			return StatusDRMLocked
		}
	}
	return StatusLoaned
}
