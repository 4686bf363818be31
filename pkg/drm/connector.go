// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package drm

import (
	"errors"
	"fmt"
	"strings"
)

type (

	// VendorID identifies the DRM vendor an account activates against.
	VendorID string

	// UserID identifies the activated user within the DRM system.
	UserID string

	// DeviceID identifies this device within the DRM system.
	DeviceID string

	// DeactivationReceiver receives the outcome of a device deactivation.
	// The connector invokes exactly one of the two methods, exactly once.
	DeactivationReceiver interface {
		OnDeactivationSucceeded()
		OnDeactivationError(message string)
	}

	// Connector is the native DRM connector interface.
	Connector interface {
		DeactivateDevice(
			receiver DeactivationReceiver,
			vendor VendorID,
			deviceManagerURI string,
			user UserID,
			device DeviceID,
		)
	}

	// Procedure is a unit of work given access to the connector.
	Procedure func(Connector)

	// Executor serializes procedures onto the single thread the native
	// connector requires.
	Executor interface {
		Execute(p Procedure)
	}

	// ClientToken is the short-lived token a lending service hands out for
	// vendor activation, in the form "label|...|username|password".
	ClientToken struct {
		Raw      string
		UserName string
		Password string
	}
)

// ParseClientToken splits a raw client token into its credential parts. The
// username is the second-to-last segment and the password the last one; the
// leading segments are an opaque label.
func ParseClientToken(raw string) (ClientToken, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 3 {
		return ClientToken{}, fmt.Errorf("malformed client token: %d segments", len(parts))
	}
	token := ClientToken{
		Raw:      raw,
		UserName: parts[len(parts)-2],
		Password: parts[len(parts)-1],
	}
	if token.UserName == "" || token.Password == "" {
		return ClientToken{}, errors.New("malformed client token: empty credential segment")
	}
	return token, nil
}
