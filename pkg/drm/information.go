// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The drm package persists per-book DRM material and declares the interfaces
// of the Adobe-style DRM connector used for device activation.
package drm

import (
	"encoding/xml"
	"fmt"
)

type (

	// Rights is the parsed form of a rights document: the loan it stands
	// for and whether the loan can be returned early.
	Rights struct {
		XMLName    xml.Name `xml:"rights"`
		LoanID     string   `xml:"loan_id"`
		Returnable bool     `xml:"returnable"`
	}

	// Information is an immutable snapshot of the DRM state persisted for
	// one book format. Every mutation of a handle produces a new
	// Information reflecting the post-write disk state.
	Information struct {
		// LicensePath is the path of the license request document,
		// empty when none is stored.
		LicensePath string

		// RightsPath is the path of the rights document, empty when
		// none is stored. Rights is its parsed form and is non-nil
		// exactly when RightsPath is set.
		RightsPath string
		Rights     *Rights
	}
)

// PersistenceError is returned for any I/O failure in the rights handle.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("drm %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
