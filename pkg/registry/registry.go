// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The registry package holds the process-wide, observable mapping from book
// identifier to current status. It is the single source of truth consumed by
// UI code; tasks push into it, subscribers re-read on notification.
package registry

import (
	"sort"
	"sync"

	"github.com/openshelf/loansync/pkg/book"
)

type (

	// Entry pairs a book record with its derived status.
	Entry struct {
		Book   book.Book
		Status book.Status
	}

	// Registry is an in-memory map guarded by a single lock. Expected
	// cardinality is hundreds of books, so one coarse lock is intentional.
	Registry struct {
		mu     sync.Mutex
		books  map[book.ID]Entry
		subs   map[int]chan struct{}
		nextID int
	}
)

// New creates an empty registry. The owning application creates one at
// startup and tears it down at shutdown; nothing here is a hidden singleton.
func New() *Registry {
	return &Registry{
		books: make(map[book.ID]Entry),
		subs:  make(map[int]chan struct{}),
	}
}

// Update inserts or replaces the entry for a book and notifies subscribers.
func (r *Registry) Update(e Entry) {
	r.mu.Lock()
	r.books[e.Book.ID] = e
	r.notifyLocked()
	r.mu.Unlock()
}

// ClearFor removes the entry for a book if present and notifies
// subscribers. Clearing an absent book is a no-op, not an error.
func (r *Registry) ClearFor(id book.ID) {
	r.mu.Lock()
	if _, ok := r.books[id]; ok {
		delete(r.books, id)
		r.notifyLocked()
	}
	r.mu.Unlock()
}

// Book returns the entry for a book, if known.
func (r *Registry) Book(id book.ID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.books[id]
	return e, ok
}

// Books returns a snapshot of every entry, in ascending identifier order.
func (r *Registry) Books() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.books))
	for _, e := range r.books {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Book.ID < entries[j].Book.ID
	})
	return entries
}

// Subscribe registers for change notifications. The channel signals
// "something changed"; consumers re-read the registry state. Notifications
// coalesce: a subscriber that has not drained its channel receives one
// signal covering any number of changes. The returned function cancels the
// subscription.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	ch := make(chan struct{}, 1)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
	return ch, cancel
}

// notifyLocked signals every subscriber. Called with r.mu held, so any
// subscriber woken by the signal reads state at least as new as the change
// that produced it.
func (r *Registry) notifyLocked() {
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
