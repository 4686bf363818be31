// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The opds package holds the model of a loans feed and its parsers. A feed
// arrives from the lending service as Atom XML and is persisted per book as
// JSON inside the book database.
package opds

import (
	"time"

	"github.com/jtacoma/uritemplates"
)

// Availability states of a catalog item, as published by the lending service.
const (
	AvailabilityLoanable   = "loanable"
	AvailabilityHoldable   = "holdable"
	AvailabilityHeld       = "held"
	AvailabilityLoaned     = "loaned"
	AvailabilityRevoked    = "revoked"
	AvailabilityOpenAccess = "open-access"
)

type (

	// Feed is an ordered sequence of catalog entries.
	Feed struct {
		ID      string    `json:"id"`
		Title   string    `json:"title"`
		Updated time.Time `json:"updated"`
		Entries []Entry   `json:"entries"`
	}

	// Entry is one catalog item: the metadata the client keeps for a book.
	Entry struct {
		ID           string        `json:"id"`
		Title        string        `json:"title"`
		Authors      []string      `json:"authors,omitempty"`
		Summary      string        `json:"summary,omitempty"`
		Updated      time.Time     `json:"updated"`
		Availability Availability  `json:"availability"`
		Acquisitions []Acquisition `json:"acquisitions,omitempty"`
	}

	// Availability describes the loan state of an entry.
	Availability struct {
		State string     `json:"state" validate:"oneof=loanable holdable held loaned revoked open-access"`
		Since *time.Time `json:"since,omitempty"`
		Until *time.Time `json:"until,omitempty"`
	}

	// Acquisition is a link through which content or DRM material for the
	// entry can be fetched. The href may be a URI template.
	Acquisition struct {
		Rel       string `json:"rel"`
		Type      string `json:"type,omitempty"`
		Href      string `json:"href"`
		Templated bool   `json:"templated,omitempty"`
	}
)

// Expand resolves the acquisition href against the given template variables.
// A non-templated href is returned unchanged.
func (a Acquisition) Expand(vars map[string]interface{}) (string, error) {
	if !a.Templated {
		return a.Href, nil
	}
	template, err := uritemplates.Parse(a.Href)
	if err != nil {
		return "", err
	}
	return template.Expand(vars)
}
