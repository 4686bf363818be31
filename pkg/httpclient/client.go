// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The httpclient package is the transport collaborator consumed by the sync
// and logout tasks. Transport-level failures surface as errors; HTTP error
// statuses surface as responses, so callers can distinguish the two.
package httpclient

import (
	"io"
	"net/http"
	"time"
)

type (

	// Auth carries optional basic authentication.
	Auth struct {
		Username string
		Password string
	}

	// Response is the outcome of a request that reached the server. The
	// caller owns Body and must close it.
	Response struct {
		Status  int
		Message string
		Body    io.ReadCloser
	}

	// Client issues authenticated GET requests.
	Client interface {
		Get(auth *Auth, uri string) (*Response, error)
	}
)

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type defaultClient struct {
	inner *http.Client
}

// NewClient returns a client backed by net/http with a request timeout.
func NewClient(timeout time.Duration) Client {
	return &defaultClient{
		inner: &http.Client{Timeout: timeout},
	}
}

func (c *defaultClient) Get(auth *Auth, uri string) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status:  resp.StatusCode,
		Message: resp.Status,
		Body:    resp.Body,
	}, nil
}
