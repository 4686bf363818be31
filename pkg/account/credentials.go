// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The account package models a library account: its provider, its login
// state machine and the credentials the state machine owns.
package account

import (
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/loansync/pkg/drm"
)

type (

	// Credentials authenticate a patron against the lending service. The
	// Adobe block is present only for accounts activated against vendor
	// DRM; it must survive a failed logout so the logout can be retried.
	Credentials struct {
		Barcode string            `json:"barcode" validate:"required"`
		PIN     string            `json:"pin" validate:"required"`
		Adobe   *AdobeCredentials `json:"adobe,omitempty"`
	}

	// AdobeCredentials is the vendor activation data carried inside
	// credentials. DeviceManagerURI may be a URI template taking a
	// device_id variable.
	AdobeCredentials struct {
		VendorID         drm.VendorID     `json:"vendor_id" validate:"required"`
		ClientToken      string           `json:"client_token" validate:"required"`
		DeviceManagerURI string           `json:"device_manager_uri,omitempty"`
		PostActivation   *AdobeActivation `json:"post_activation,omitempty"`
	}

	// AdobeActivation is the device identity established by a successful
	// vendor activation.
	AdobeActivation struct {
		DeviceID drm.DeviceID `json:"device_id" validate:"required"`
		UserID   drm.UserID   `json:"user_id" validate:"required"`
	}
)

// Validate checks required fields and values.
func (c *Credentials) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
