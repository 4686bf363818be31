// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MockClient serves canned responses per URI, for tests. Each URI holds a
// queue; a Get pops the head. Requests for unknown URIs fail as a transport
// error would.
type MockClient struct {
	mu        sync.Mutex
	responses map[string][]mockResponse
	requests  []string
}

type mockResponse struct {
	status  int
	message string
	body    []byte
	err     error
}

// NewMockClient returns an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{responses: make(map[string][]mockResponse)}
}

// AddResponse queues a response for a URI.
func (m *MockClient) AddResponse(uri string, status int, message string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[uri] = append(m.responses[uri], mockResponse{status: status, message: message, body: body})
}

// AddError queues a transport failure for a URI.
func (m *MockClient) AddError(uri string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[uri] = append(m.responses[uri], mockResponse{err: err})
}

// Requests returns the URIs requested so far, in order.
func (m *MockClient) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *MockClient) Get(auth *Auth, uri string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, uri)

	queue := m.responses[uri]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no response queued for %s", uri)
	}
	head := queue[0]
	m.responses[uri] = queue[1:]

	if head.err != nil {
		return nil, head.err
	}
	return &Response{
		Status:  head.status,
		Message: head.message,
		Body:    io.NopCloser(bytes.NewReader(head.body)),
	}, nil
}
